package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-adm/university-api/internal/models"
	"github.com/campus-adm/university-api/pkg/database"
	appErrors "github.com/campus-adm/university-api/pkg/errors"
)

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, sessionID string) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) (int64, error)
}

// CreateCourseRequest describes a course catalog entry.
type CreateCourseRequest struct {
	Name       string   `json:"name" validate:"required"`
	ShortName  string   `json:"short_name" validate:"required"`
	CourseCode string   `json:"course_code" validate:"required"`
	Credits    int      `json:"credits" validate:"required,min=1,max=5"`
	OfferedIn  []string `json:"offered_in" validate:"omitempty,dive,required"`
}

// UpdateCourseRequest carries mutable course attributes.
type UpdateCourseRequest struct {
	Name      *string  `json:"name" validate:"omitempty,min=1"`
	ShortName *string  `json:"short_name" validate:"omitempty,min=1"`
	Credits   *int     `json:"credits" validate:"omitempty,min=1,max=5"`
	OfferedIn []string `json:"offered_in" validate:"omitempty,dive,required"`
}

// CourseService manages the course catalog consumed by the registration
// ledger.
type CourseService struct {
	repo      courseRepository
	sessions  sessionReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, sessions sessionReader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, sessions: sessions, validator: validate, logger: logger}
}

// Create adds a course to the catalog.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	for _, sessionID := range req.OfferedIn {
		if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
		}
	}

	course := &models.Course{
		Name:       req.Name,
		ShortName:  req.ShortName,
		CourseCode: req.CourseCode,
		Credits:    req.Credits,
		OfferedIn:  req.OfferedIn,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("course_code", course.CourseCode))
	return course, nil
}

// GetByID returns one course.
func (s *CourseService) GetByID(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// List returns courses, optionally filtered to one session's offerings.
func (s *CourseService) List(ctx context.Context, sessionID string) ([]models.Course, error) {
	courses, err := s.repo.List(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// Update applies the non-nil fields of the request to the course.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if req.Name != nil {
		course.Name = *req.Name
	}
	if req.ShortName != nil {
		course.ShortName = *req.ShortName
	}
	if req.Credits != nil {
		course.Credits = *req.Credits
	}
	if req.OfferedIn != nil {
		for _, sessionID := range req.OfferedIn {
			if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
			}
		}
		course.OfferedIn = req.OfferedIn
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete removes a course from the catalog. Existing registrations keep the
// identifier; it simply stops resolving and contributes zero credits.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}
