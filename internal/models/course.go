package models

import (
	"time"

	"github.com/lib/pq"
)

// Course carries a credit weight and the sessions it is offered in.
type Course struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	ShortName  string         `db:"short_name" json:"short_name"`
	CourseCode string         `db:"course_code" json:"course_code"`
	Credits    int            `db:"credits" json:"credits"`
	OfferedIn  pq.StringArray `db:"offered_in" json:"offered_in"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}
