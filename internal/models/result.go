package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Grade is a letter grade derived from average marks.
type Grade string

const (
	GradeA  Grade = "A"
	GradeB  Grade = "B"
	GradeC  Grade = "C"
	GradeD  Grade = "D"
	GradeF  Grade = "F"
	GradeNA Grade = "NA"
)

// CourseMarks records the exam component marks of a single course.
type CourseMarks struct {
	CourseID  string  `json:"course_id"`
	MidTerm1  float64 `json:"mid_term_1"`
	MidTerm2  float64 `json:"mid_term_2"`
	FinalTerm float64 `json:"final_term"`
	Total     float64 `json:"total"`
}

// CourseMarksList stores course marks as a JSONB column.
type CourseMarksList []CourseMarks

// Value implements driver.Valuer.
func (l CourseMarksList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *CourseMarksList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported course marks type %T", src)
	}
}

// StudentResult is the derived grade record for one registration.
type StudentResult struct {
	ID             string          `db:"id" json:"id"`
	RegistrationID string          `db:"registration_id" json:"registration_id"`
	StudentID      string          `db:"student_id" json:"student_id"`
	CoursesMarks   CourseMarksList `db:"courses_marks" json:"courses_marks"`
	AverageMarks   float64         `db:"average_marks" json:"average_marks"`
	AvgGrade       Grade           `db:"avg_grade" json:"avg_grade"`
	AvgGradePoints float64         `db:"avg_grade_points" json:"avg_grade_points"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}
