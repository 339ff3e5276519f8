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

type studentRepository interface {
	FindByID(ctx context.Context, q database.Querier, id string) (*models.Student, error)
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	SetApproved(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, q database.Querier, id string) (int64, error)
}

type registrationRemover interface {
	DeleteByStudent(ctx context.Context, q database.Querier, studentID string) error
}

// CreateStudentRequest describes a student onboarding payload.
type CreateStudentRequest struct {
	StudentNo    string `json:"student_no" validate:"required"`
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	Gender       string `json:"gender" validate:"required,oneof=male female other"`
	Email        string `json:"email" validate:"required,email"`
	ContactNo    string `json:"contact_no" validate:"required"`
	BloodGroup   string `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	DepartmentID string `json:"department_id" validate:"required"`
	SessionID    string `json:"session_id" validate:"required"`
}

// UpdateStudentRequest carries the mutable student attributes; nil fields are
// left untouched.
type UpdateStudentRequest struct {
	FirstName    *string `json:"first_name" validate:"omitempty,min=1"`
	LastName     *string `json:"last_name" validate:"omitempty,min=1"`
	Gender       *string `json:"gender" validate:"omitempty,oneof=male female other"`
	Email        *string `json:"email" validate:"omitempty,email"`
	ContactNo    *string `json:"contact_no" validate:"omitempty,min=1"`
	BloodGroup   *string `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	DepartmentID *string `json:"department_id" validate:"omitempty,min=1"`
	SessionID    *string `json:"session_id" validate:"omitempty,min=1"`
}

// StudentService handles student onboarding, approval and administration.
type StudentService struct {
	repo          studentRepository
	registrations registrationRemover
	departments   departmentReader
	sessions      sessionReader
	tx            database.TxRunner
	db            database.Querier
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, registrations registrationRemover, departments departmentReader, sessions sessionReader, tx database.TxRunner, db database.Querier, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, registrations: registrations, departments: departments, sessions: sessions, tx: tx, db: db, validator: validate, logger: logger}
}

// Create registers a new student pending admission approval.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if _, err := s.departments.FindByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if _, err := s.sessions.FindByID(ctx, req.SessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	exists, err := s.repo.ExistsEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}

	student := &models.Student{
		StudentNo:    req.StudentNo,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Gender:       req.Gender,
		Email:        req.Email,
		ContactNo:    req.ContactNo,
		BloodGroup:   req.BloodGroup,
		DepartmentID: req.DepartmentID,
		SessionID:    req.SessionID,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student number or email already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	detail, err := s.repo.FindDetailByID(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student detail")
	}
	s.logger.Info("student created", zap.String("student_id", student.ID), zap.String("student_no", student.StudentNo))
	return detail, nil
}

// GetByID returns one student with department and session names attached.
func (s *StudentService) GetByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return detail, nil
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Update applies the non-nil fields of the request to the student.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if req.FirstName != nil {
		student.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		student.LastName = *req.LastName
	}
	if req.Gender != nil {
		student.Gender = *req.Gender
	}
	if req.Email != nil {
		student.Email = *req.Email
	}
	if req.ContactNo != nil {
		student.ContactNo = *req.ContactNo
	}
	if req.BloodGroup != nil {
		student.BloodGroup = *req.BloodGroup
	}
	if req.DepartmentID != nil {
		if _, err := s.departments.FindByID(ctx, *req.DepartmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "academic department not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
		}
		student.DepartmentID = *req.DepartmentID
	}
	if req.SessionID != nil {
		if _, err := s.sessions.FindByID(ctx, *req.SessionID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
		}
		student.SessionID = *req.SessionID
	}

	if err := s.repo.Update(ctx, student); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student detail")
	}
	return detail, nil
}

// Approve marks a student as admitted, unlocking course registration.
func (s *StudentService) Approve(ctx context.Context, id string) error {
	rows, err := s.repo.SetApproved(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve student")
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	s.logger.Info("student approved", zap.String("student_id", id))
	return nil
}

// Delete removes the student and their registrations in one transaction.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	err := s.tx.WithinTx(ctx, func(q database.Querier) error {
		if err := s.registrations.DeleteByStudent(ctx, q, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete registrations")
		}
		rows, err := s.repo.Delete(ctx, q, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
		}
		if rows == 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}
