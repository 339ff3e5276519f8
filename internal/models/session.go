package models

import "time"

// AcademicSession is a named academic term (e.g. "Autumn" 2024) scoping
// course offerings and registrations.
type AcademicSession struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Year       string    `db:"year" json:"year"`
	Code       string    `db:"code" json:"code"`
	StartMonth string    `db:"start_month" json:"start_month"`
	EndMonth   string    `db:"end_month" json:"end_month"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
