package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campus-adm/university-api/internal/models"
	"github.com/campus-adm/university-api/pkg/database"
)

const registrationColumns = `id, student_id, student_no, courses, total_credit,
        department_id, session_id, is_approved, is_result_published,
        course_set_hash, created_at, updated_at`

// RegistrationRepository owns persistence of the registration ledger. Methods
// that participate in a multi-statement atomic unit take an explicit Querier
// so the service layer can thread one transaction through all of them.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// DB exposes the underlying handle for transaction scoping.
func (r *RegistrationRepository) DB() *sqlx.DB {
	return r.db
}

// ExistsDuplicate reports whether a registration already exists for the
// (student, department, session) tuple with an identical course multiset.
func (r *RegistrationRepository) ExistsDuplicate(ctx context.Context, q database.Querier, studentID, departmentID, sessionID, courseSetHash string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM registrations
        WHERE student_id = $1 AND department_id = $2 AND session_id = $3 AND course_set_hash = $4)`
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, query, studentID, departmentID, sessionID, courseSetHash); err != nil {
		return false, fmt.Errorf("check duplicate registration: %w", err)
	}
	return exists, nil
}

// Insert persists a new registration row. A unique index on
// (student_id, department_id, session_id, course_set_hash) backstops the
// duplicate check; callers detect violations via IsUniqueViolation.
func (r *RegistrationRepository) Insert(ctx context.Context, q database.Querier, registration *models.Registration) error {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	registration.CreatedAt = now
	registration.UpdatedAt = now
	registration.CourseSetHash = models.CourseSetHash(registration.Courses)

	const query = `INSERT INTO registrations
        (id, student_id, student_no, courses, total_credit, department_id, session_id,
         is_approved, is_result_published, course_set_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := q.ExecContext(ctx, query,
		registration.ID,
		registration.StudentID,
		registration.StudentNo,
		registration.Courses,
		registration.TotalCredit,
		registration.DepartmentID,
		registration.SessionID,
		registration.IsApproved,
		registration.IsResultPublished,
		registration.CourseSetHash,
		registration.CreatedAt,
		registration.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// FindByID returns a registration row by identifier.
func (r *RegistrationRepository) FindByID(ctx context.Context, q database.Querier, id string) (*models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM registrations WHERE id = $1", registrationColumns)
	var registration models.Registration
	if err := sqlx.GetContext(ctx, q, &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// FindByStudent returns the registration owned by the given student.
func (r *RegistrationRepository) FindByStudent(ctx context.Context, studentID string) (*models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM registrations WHERE student_id = $1 ORDER BY created_at DESC LIMIT 1", registrationColumns)
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, studentID); err != nil {
		return nil, err
	}
	return &registration, nil
}

// FindUnapproved locates the registration matching the drop tuple. Approved
// registrations are invisible to this lookup.
func (r *RegistrationRepository) FindUnapproved(ctx context.Context, q database.Querier, studentID, sessionID, departmentID string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations
        WHERE student_id = $1 AND session_id = $2 AND department_id = $3 AND is_approved = FALSE`, registrationColumns)
	var registration models.Registration
	if err := sqlx.GetContext(ctx, q, &registration, query, studentID, sessionID, departmentID); err != nil {
		return nil, err
	}
	return &registration, nil
}

// ListByApproval returns registrations filtered on the approval flag.
func (r *RegistrationRepository) ListByApproval(ctx context.Context, approved bool) ([]models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM registrations WHERE is_approved = $1 ORDER BY created_at DESC", registrationColumns)
	var registrations []models.Registration
	if err := r.db.SelectContext(ctx, &registrations, query, approved); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return registrations, nil
}

// ListByCourse returns registrations whose course set contains the course.
func (r *RegistrationRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM registrations WHERE $1 = ANY(courses) ORDER BY created_at DESC", registrationColumns)
	var registrations []models.Registration
	if err := r.db.SelectContext(ctx, &registrations, query, courseID); err != nil {
		return nil, fmt.Errorf("list registrations by course: %w", err)
	}
	return registrations, nil
}

// PullCourses removes every occurrence of the named course ids from the
// registration's course array and decrements the credit total, conditioned on
// the row still being unapproved. The zero-row outcome signals a concurrent
// approval (or a racing mutation) to the caller.
func (r *RegistrationRepository) PullCourses(ctx context.Context, q database.Querier, registrationID string, courseIDs []string, creditsToDrop int) (int64, error) {
	const query = `UPDATE registrations
        SET courses = (
                SELECT COALESCE(array_agg(c), '{}')
                FROM unnest(courses) AS c
                WHERE c <> ALL($2::text[])),
            total_credit = total_credit - $3,
            updated_at = $4
        WHERE id = $1 AND is_approved = FALSE`
	result, err := q.ExecContext(ctx, query, registrationID, pq.Array(courseIDs), creditsToDrop, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("pull courses: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pull courses rows: %w", err)
	}
	return rows, nil
}

// UpdateCourseSetHash refreshes the multiset fingerprint after a drop so the
// duplicate-registration backstop index stays truthful.
func (r *RegistrationRepository) UpdateCourseSetHash(ctx context.Context, q database.Querier, registrationID, hash string) error {
	const query = `UPDATE registrations SET course_set_hash = $2 WHERE id = $1`
	if _, err := q.ExecContext(ctx, query, registrationID, hash); err != nil {
		return fmt.Errorf("update course set hash: %w", err)
	}
	return nil
}

// SetApproved flips the approval flag. Re-approval writes the same value
// again rather than failing, matching ledger semantics.
func (r *RegistrationRepository) SetApproved(ctx context.Context, q database.Querier, id string) (int64, error) {
	const query = `UPDATE registrations SET is_approved = TRUE, updated_at = $2 WHERE id = $1`
	result, err := q.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("approve registration: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("approve registration rows: %w", err)
	}
	return rows, nil
}

// SetResultPublished marks the registration as having a published result.
func (r *RegistrationRepository) SetResultPublished(ctx context.Context, q database.Querier, id string) error {
	const query = `UPDATE registrations SET is_result_published = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := q.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark result published: %w", err)
	}
	return nil
}

// DeleteByStudent removes the student's registrations, used by the admin
// cascade delete.
func (r *RegistrationRepository) DeleteByStudent(ctx context.Context, q database.Querier, studentID string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM registrations WHERE student_id = $1", studentID); err != nil {
		return fmt.Errorf("delete registrations for student: %w", err)
	}
	return nil
}
