package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-adm/university-api/internal/models"
	"github.com/campus-adm/university-api/pkg/database"
)

const resultColumns = `id, registration_id, student_id, courses_marks, average_marks,
        avg_grade, avg_grade_points, created_at, updated_at`

// ResultRepository persists derived student results.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs the repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// FindByRegistration returns the result for a registration if one exists.
func (r *ResultRepository) FindByRegistration(ctx context.Context, q database.Querier, registrationID string) (*models.StudentResult, error) {
	query := fmt.Sprintf("SELECT %s FROM student_results WHERE registration_id = $1", resultColumns)
	var result models.StudentResult
	if err := sqlx.GetContext(ctx, q, &result, query, registrationID); err != nil {
		return nil, err
	}
	return &result, nil
}

// Upsert writes the computed result, replacing an existing one for the same
// registration. Runs against q so publication stays atomic with the
// registration flag flip.
func (r *ResultRepository) Upsert(ctx context.Context, q database.Querier, result *models.StudentResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now

	const query = `INSERT INTO student_results
        (id, registration_id, student_id, courses_marks, average_marks, avg_grade, avg_grade_points, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (registration_id)
        DO UPDATE SET courses_marks = EXCLUDED.courses_marks,
            average_marks = EXCLUDED.average_marks,
            avg_grade = EXCLUDED.avg_grade,
            avg_grade_points = EXCLUDED.avg_grade_points,
            updated_at = EXCLUDED.updated_at`
	if _, err := q.ExecContext(ctx, query,
		result.ID,
		result.RegistrationID,
		result.StudentID,
		result.CoursesMarks,
		result.AverageMarks,
		result.AvgGrade,
		result.AvgGradePoints,
		result.CreatedAt,
		result.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert student result: %w", err)
	}
	return nil
}
