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

const courseColumns = "id, name, short_name, course_code, credits, offered_in, created_at, updated_at"

// CourseRepository handles persistence of the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// TotalCredits sums the credit weights of the submitted course id list.
// Duplicated identifiers each contribute to the sum; identifiers that do not
// resolve contribute zero. Runs against q so the drop path can execute it
// inside an open transaction.
func (r *CourseRepository) TotalCredits(ctx context.Context, q database.Querier, courseIDs []string) (int, error) {
	if len(courseIDs) == 0 {
		return 0, nil
	}
	const query = `SELECT COALESCE(SUM(c.credits), 0)
        FROM unnest($1::text[]) AS req(id)
        JOIN courses c ON c.id = req.id`
	var total int
	if err := sqlx.GetContext(ctx, q, &total, query, pq.Array(courseIDs)); err != nil {
		return 0, fmt.Errorf("sum course credits: %w", err)
	}
	return total, nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE id = $1", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByIDs returns all courses matching the given ids (deduplicated).
func (r *CourseRepository) FindByIDs(ctx context.Context, q database.Querier, ids []string) ([]models.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM courses WHERE id = ANY($1::text[]) ORDER BY course_code", courseColumns)
	var courses []models.Course
	if err := sqlx.SelectContext(ctx, q, &courses, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find courses: %w", err)
	}
	return courses, nil
}

// List returns courses, optionally restricted to a session they are offered in.
func (r *CourseRepository) List(ctx context.Context, sessionID string) ([]models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses", courseColumns)
	var args []interface{}
	if sessionID != "" {
		query += " WHERE $1 = ANY(offered_in)"
		args = append(args, sessionID)
	}
	query += " ORDER BY course_code"

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, name, short_name, course_code, credits, offered_in, created_at, updated_at)
        VALUES (:id, :name, :short_name, :course_code, :credits, :offered_in, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update overwrites mutable course attributes.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses
        SET name = :name, short_name = :short_name, course_code = :course_code,
            credits = :credits, offered_in = :offered_in, updated_at = :updated_at
        WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update course rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("course %s not found", course.ID)
	}
	return nil
}

// Delete removes a course from the catalog.
func (r *CourseRepository) Delete(ctx context.Context, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id)
	if err != nil {
		return 0, fmt.Errorf("delete course: %w", err)
	}
	return result.RowsAffected()
}

// MissingIDs reports which of the submitted ids do not resolve to a course.
func (r *CourseRepository) MissingIDs(ctx context.Context, courseIDs []string) ([]string, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT req.id
        FROM unnest($1::text[]) AS req(id)
        LEFT JOIN courses c ON c.id = req.id
        WHERE c.id IS NULL`
	var missing []string
	if err := r.db.SelectContext(ctx, &missing, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("check course ids: %w", err)
	}
	return missing, nil
}
