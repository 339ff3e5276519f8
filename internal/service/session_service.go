package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-adm/university-api/internal/models"
	appErrors "github.com/campus-adm/university-api/pkg/errors"
)

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.AcademicSession, error)
	ExistsByNameAndYear(ctx context.Context, name, year string) (bool, error)
	List(ctx context.Context) ([]models.AcademicSession, error)
	Create(ctx context.Context, session *models.AcademicSession) error
}

// CreateSessionRequest describes an academic session payload.
type CreateSessionRequest struct {
	Name       string `json:"name" validate:"required,oneof=Autumn Summer Fall"`
	Year       string `json:"year" validate:"required,len=4,numeric"`
	Code       string `json:"code" validate:"required,oneof=01 02 03"`
	StartMonth string `json:"start_month" validate:"required"`
	EndMonth   string `json:"end_month" validate:"required"`
}

// SessionService manages academic sessions.
type SessionService struct {
	repo      sessionRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs SessionService.
func NewSessionService(repo sessionRepository, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, validator: validate, logger: logger}
}

// Create adds a session. A session name recurs at most once per year.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*models.AcademicSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	exists, err := s.repo.ExistsByNameAndYear(ctx, req.Name, req.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check session")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session already exists for this year")
	}

	session := &models.AcademicSession{
		Name:       req.Name,
		Year:       req.Year,
		Code:       req.Code,
		StartMonth: req.StartMonth,
		EndMonth:   req.EndMonth,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	s.logger.Info("session created", zap.String("session_id", session.ID), zap.String("name", session.Name), zap.String("year", session.Year))
	return session, nil
}

// GetByID returns one session.
func (s *SessionService) GetByID(ctx context.Context, id string) (*models.AcademicSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// List returns all sessions, most recent year first.
func (s *SessionService) List(ctx context.Context) ([]models.AcademicSession, error) {
	sessions, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}
