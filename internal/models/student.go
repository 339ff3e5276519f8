package models

import "time"

// Student represents a learner admitted to the institution.
type Student struct {
	ID           string    `db:"id" json:"id"`
	StudentNo    string    `db:"student_no" json:"student_no"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Gender       string    `db:"gender" json:"gender"`
	Email        string    `db:"email" json:"email"`
	ContactNo    string    `db:"contact_no" json:"contact_no"`
	BloodGroup   string    `db:"blood_group" json:"blood_group,omitempty"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	SessionID    string    `db:"session_id" json:"session_id"`
	IsApproved   bool      `db:"is_approved" json:"is_approved"`
	IsRegistered bool      `db:"is_registered" json:"is_registered"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins the name parts for presentation.
func (s Student) FullName() string {
	if s.FirstName == "" {
		return s.LastName
	}
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StudentDetail enriches Student with department and session names.
type StudentDetail struct {
	Student
	DepartmentName string `db:"department_name" json:"department_name"`
	SessionName    string `db:"session_name" json:"session_name"`
	SessionYear    string `db:"session_year" json:"session_year"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search       string
	DepartmentID string
	SessionID    string
	Approved     *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
