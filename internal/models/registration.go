package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Registration is a student's committed set of courses for one academic
// session within one department, carrying a validated credit-hour load.
type Registration struct {
	ID                string         `db:"id" json:"id"`
	StudentID         string         `db:"student_id" json:"student_id"`
	StudentNo         string         `db:"student_no" json:"student_no"`
	Courses           pq.StringArray `db:"courses" json:"courses"`
	TotalCredit       int            `db:"total_credit" json:"total_credit"`
	DepartmentID      string         `db:"department_id" json:"department_id"`
	SessionID         string         `db:"session_id" json:"session_id"`
	IsApproved        bool           `db:"is_approved" json:"is_approved"`
	IsResultPublished bool           `db:"is_result_published" json:"is_result_published"`
	CourseSetHash     string         `db:"course_set_hash" json:"-"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// RegistrationDetail hydrates a Registration with its referenced entities.
type RegistrationDetail struct {
	Registration
	Student    Student            `json:"student_info"`
	Department AcademicDepartment `json:"department_info"`
	Session    AcademicSession    `json:"session_info"`
	CourseList []Course           `json:"course_details"`
}

// CourseSetHash fingerprints a course multiset. Order does not matter;
// repeated identifiers do. Backs the duplicate-registration uniqueness
// constraint.
func CourseSetHash(courseIDs []string) string {
	sorted := make([]string, len(courseIDs))
	copy(sorted, courseIDs)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])
}
