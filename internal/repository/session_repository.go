package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-adm/university-api/internal/models"
)

const sessionColumns = "id, name, year, code, start_month, end_month, created_at, updated_at"

// SessionRepository handles persistence of academic sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByID returns a session by identifier.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.AcademicSession, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1", sessionColumns)
	var session models.AcademicSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ExistsByNameAndYear mirrors the catalog rule that a session name recurs at
// most once per year.
func (r *SessionRepository) ExistsByNameAndYear(ctx context.Context, name, year string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM sessions WHERE name = $1 AND year = $2 LIMIT 1", name, year)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check session uniqueness: %w", err)
	}
	return true, nil
}

// List returns all sessions ordered by most recent year first.
func (r *SessionRepository) List(ctx context.Context) ([]models.AcademicSession, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions ORDER BY year DESC, name", sessionColumns)
	var sessions []models.AcademicSession
	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.AcademicSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	const query = `INSERT INTO sessions (id, name, year, code, start_month, end_month, created_at, updated_at)
        VALUES (:id, :name, :year, :code, :start_month, :end_month, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}
