package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-adm/university-api/internal/models"
	"github.com/campus-adm/university-api/pkg/database"
)

const studentColumns = `id, student_no, first_name, last_name, gender, email, contact_no,
        blood_group, department_id, session_id, is_approved, is_registered, created_at, updated_at`

// StudentRepository handles persistence of students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by identifier, optionally inside a transaction.
func (r *StudentRepository) FindByID(ctx context.Context, q database.Querier, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := sqlx.GetContext(ctx, q, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindDetailByID returns a student with department and session names attached.
func (r *StudentRepository) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := `SELECT s.id, s.student_no, s.first_name, s.last_name, s.gender, s.email, s.contact_no,
        s.blood_group, s.department_id, s.session_id, s.is_approved, s.is_registered, s.created_at, s.updated_at,
        d.name AS department_name, ses.name AS session_name, ses.year AS session_year
        FROM students s
        LEFT JOIN departments d ON d.id = s.department_id
        LEFT JOIN sessions ses ON ses.id = s.session_id
        WHERE s.id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsEmail reports whether a student with the email already exists.
func (r *StudentRepository) ExistsEmail(ctx context.Context, email string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM students WHERE email = $1 LIMIT 1", email)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student email: %w", err)
	}
	return true, nil
}

// List returns students filtered by the provided criteria.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := `FROM students s
LEFT JOIN departments d ON d.id = s.department_id
LEFT JOIN sessions ses ON ses.id = s.session_id`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(s.first_name ILIKE $%d OR s.last_name ILIKE $%d OR s.student_no ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("s.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("s.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.Approved != nil {
		conditions = append(conditions, fmt.Sprintf("s.is_approved = $%d", len(args)+1))
		args = append(args, *filter.Approved)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "s.created_at",
		"name":       "s.first_name",
		"student_no": "s.student_no",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.student_no, s.first_name, s.last_name, s.gender, s.email, s.contact_no,
        s.blood_group, s.department_id, s.session_id, s.is_approved, s.is_registered, s.created_at, s.updated_at,
        d.name AS department_name, ses.name AS session_name, ses.year AS session_year
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// Create persists a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students
        (id, student_no, first_name, last_name, gender, email, contact_no, blood_group,
         department_id, session_id, is_approved, is_registered, created_at, updated_at)
        VALUES (:id, :student_no, :first_name, :last_name, :gender, :email, :contact_no, :blood_group,
         :department_id, :session_id, :is_approved, :is_registered, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update overwrites mutable student attributes.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students
        SET first_name = :first_name, last_name = :last_name, gender = :gender,
            email = :email, contact_no = :contact_no, blood_group = :blood_group,
            department_id = :department_id, session_id = :session_id, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// SetApproved flips the admission approval flag.
func (r *StudentRepository) SetApproved(ctx context.Context, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "UPDATE students SET is_approved = TRUE, updated_at = $2 WHERE id = $1", id, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("approve student: %w", err)
	}
	return result.RowsAffected()
}

// SetRegistered records whether the student holds an active registration.
// Called inside the registration transaction so the flag never diverges from
// the ledger.
func (r *StudentRepository) SetRegistered(ctx context.Context, q database.Querier, id string, registered bool) (int64, error) {
	result, err := q.ExecContext(ctx, "UPDATE students SET is_registered = $2, updated_at = $3 WHERE id = $1", id, registered, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("set student registered flag: %w", err)
	}
	return result.RowsAffected()
}

// Delete removes a student row, used by the admin cascade delete.
func (r *StudentRepository) Delete(ctx context.Context, q database.Querier, id string) (int64, error) {
	result, err := q.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return 0, fmt.Errorf("delete student: %w", err)
	}
	return result.RowsAffected()
}
