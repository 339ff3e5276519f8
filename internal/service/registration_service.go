package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campus-adm/university-api/internal/models"
	"github.com/campus-adm/university-api/pkg/database"
	appErrors "github.com/campus-adm/university-api/pkg/errors"
	"github.com/campus-adm/university-api/pkg/export"
	"github.com/campus-adm/university-api/pkg/mailer"
)

// uqRegistrationCourseSet backstops the in-transaction duplicate check.
const uqRegistrationCourseSet = "uq_registrations_course_set"

type registrationLedger interface {
	ExistsDuplicate(ctx context.Context, q database.Querier, studentID, departmentID, sessionID, courseSetHash string) (bool, error)
	Insert(ctx context.Context, q database.Querier, registration *models.Registration) error
	FindByID(ctx context.Context, q database.Querier, id string) (*models.Registration, error)
	FindByStudent(ctx context.Context, studentID string) (*models.Registration, error)
	FindUnapproved(ctx context.Context, q database.Querier, studentID, sessionID, departmentID string) (*models.Registration, error)
	ListByApproval(ctx context.Context, approved bool) ([]models.Registration, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Registration, error)
	PullCourses(ctx context.Context, q database.Querier, registrationID string, courseIDs []string, creditsToDrop int) (int64, error)
	UpdateCourseSetHash(ctx context.Context, q database.Querier, registrationID, hash string) error
	SetApproved(ctx context.Context, q database.Querier, id string) (int64, error)
}

type courseCatalog interface {
	TotalCredits(ctx context.Context, q database.Querier, courseIDs []string) (int, error)
	FindByIDs(ctx context.Context, q database.Querier, ids []string) ([]models.Course, error)
	MissingIDs(ctx context.Context, courseIDs []string) ([]string, error)
}

type studentStore interface {
	FindByID(ctx context.Context, q database.Querier, id string) (*models.Student, error)
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
	SetRegistered(ctx context.Context, q database.Querier, id string, registered bool) (int64, error)
}

type departmentReader interface {
	FindByID(ctx context.Context, id string) (*models.AcademicDepartment, error)
}

type sessionReader interface {
	FindByID(ctx context.Context, id string) (*models.AcademicSession, error)
}

type outboxWriter interface {
	Insert(ctx context.Context, q database.Querier, entry *models.NotificationOutbox) error
}

type registrationCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type rosterRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// CreateRegistrationRequest describes a registration creation payload.
type CreateRegistrationRequest struct {
	StudentID    string   `json:"student" validate:"required"`
	DepartmentID string   `json:"academic_department" validate:"required"`
	SessionID    string   `json:"academic_session" validate:"required"`
	Courses      []string `json:"courses" validate:"required,min=1,dive,required"`
}

// DropCoursesRequest identifies the registration and the courses to remove.
type DropCoursesRequest struct {
	StudentID    string   `json:"student_id" validate:"required"`
	SessionID    string   `json:"academic_session_id" validate:"required"`
	DepartmentID string   `json:"academic_department_id" validate:"required"`
	CourseIDs    []string `json:"course_ids_to_drop" validate:"required,min=1,dive,required"`
}

// RegistrationService owns the registration ledger workflows: create with
// credit-bound and duplicate enforcement, hydrated reads, approval with
// queued notification, and transactional course drops.
type RegistrationService struct {
	repo        registrationLedger
	courses     courseCatalog
	students    studentStore
	departments departmentReader
	sessions    sessionReader
	outbox      outboxWriter
	cache       registrationCache
	roster      rosterRenderer
	tx          database.TxRunner
	db          database.Querier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger

	minCredits    int
	maxCredits    int
	cacheTTL      time.Duration
	outboxEnabled bool
}

// RegistrationServiceParams bundles the many collaborators of the ledger.
type RegistrationServiceParams struct {
	Repo        registrationLedger
	Courses     courseCatalog
	Students    studentStore
	Departments departmentReader
	Sessions    sessionReader
	Outbox      outboxWriter
	Cache       registrationCache
	Roster      rosterRenderer
	Tx          database.TxRunner
	DB          database.Querier
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger

	MinCredits    int
	MaxCredits    int
	CacheTTL      time.Duration
	OutboxEnabled bool
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(p RegistrationServiceParams) *RegistrationService {
	if p.Validator == nil {
		p.Validator = validator.New()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.MinCredits <= 0 {
		p.MinCredits = 9
	}
	if p.MaxCredits <= 0 {
		p.MaxCredits = 15
	}
	if p.CacheTTL <= 0 {
		p.CacheTTL = 5 * time.Minute
	}
	return &RegistrationService{
		repo:          p.Repo,
		courses:       p.Courses,
		students:      p.Students,
		departments:   p.Departments,
		sessions:      p.Sessions,
		outbox:        p.Outbox,
		cache:         p.Cache,
		roster:        p.Roster,
		tx:            p.Tx,
		db:            p.DB,
		metrics:       p.Metrics,
		validator:     p.Validator,
		logger:        p.Logger,
		minCredits:    p.MinCredits,
		maxCredits:    p.MaxCredits,
		cacheTTL:      p.CacheTTL,
		outboxEnabled: p.OutboxEnabled,
	}
}

func registrationCacheKey(id string) string {
	return "registration:" + id
}

func registrationStudentCacheKey(studentID string) string {
	return "registration:student:" + studentID
}

// Create validates the course selection against the credit band and the
// duplicate rule, then persists the registration and flips the student's
// registered flag inside one transaction.
func (s *RegistrationService) Create(ctx context.Context, req CreateRegistrationRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	var student *models.Student
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		found, err := s.students.FindByID(groupCtx, s.db, req.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		student = found
		return nil
	})
	group.Go(func() error {
		if _, err := s.departments.FindByID(groupCtx, req.DepartmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "academic department not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
		}
		return nil
	})
	group.Go(func() error {
		if _, err := s.sessions.FindByID(groupCtx, req.SessionID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
		}
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if !student.IsApproved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is not approved for registration")
	}

	if missing, err := s.courses.MissingIDs(ctx, req.Courses); err != nil {
		s.logger.Warn("failed to check course ids", zap.String("student_id", req.StudentID), zap.Error(err))
	} else if len(missing) > 0 {
		s.logger.Warn("registration references unknown courses, they contribute zero credits",
			zap.String("student_id", req.StudentID),
			zap.Strings("course_ids", missing))
	}

	totalCredit, err := s.courses.TotalCredits(ctx, s.db, req.Courses)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute total credits")
	}
	if totalCredit < s.minCredits || totalCredit > s.maxCredits {
		return nil, appErrors.Clone(appErrors.ErrInvalidCreditTotal,
			fmt.Sprintf("total credit must be between %d and %d, got %d", s.minCredits, s.maxCredits, totalCredit))
	}

	courseSetHash := models.CourseSetHash(req.Courses)
	registration := &models.Registration{
		StudentID:    req.StudentID,
		StudentNo:    student.StudentNo,
		Courses:      append([]string(nil), req.Courses...),
		TotalCredit:  totalCredit,
		DepartmentID: req.DepartmentID,
		SessionID:    req.SessionID,
	}

	// The duplicate check is re-evaluated inside the transaction to close the
	// check-then-act race; the unique index on the course-set hash catches
	// whatever slips through under weaker isolation.
	err = s.tx.WithinTx(ctx, func(q database.Querier) error {
		exists, err := s.repo.ExistsDuplicate(ctx, q, req.StudentID, req.DepartmentID, req.SessionID, courseSetHash)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicate registration")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrDuplicateRegistration, "")
		}
		if err := s.repo.Insert(ctx, q, registration); err != nil {
			return err
		}
		if _, err := s.students.SetRegistered(ctx, q, req.StudentID, true); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark student registered")
		}
		return nil
	})
	s.metrics.RecordRegistrationOperation("create", err)
	if err != nil {
		if database.IsUniqueViolation(err, uqRegistrationCourseSet) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateRegistration, "")
		}
		var domainErr *appErrors.Error
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}

	s.invalidate(ctx, registration.ID, registration.StudentID)
	s.logger.Info("registration created",
		zap.String("registration_id", registration.ID),
		zap.String("student_id", registration.StudentID),
		zap.Int("total_credit", registration.TotalCredit))
	return registration, nil
}

// GetByID returns one registration hydrated with its student, department,
// session and course details, served through the read cache when warm.
func (s *RegistrationService) GetByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	key := registrationCacheKey(id)
	if s.cache != nil {
		var cached models.RegistrationDetail
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("registration cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	registration, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	detail, err := s.hydrate(ctx, registration)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, detail, s.cacheTTL); err != nil {
			s.logger.Warn("registration cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return detail, nil
}

// GetByStudent returns the student's latest registration, hydrated.
func (s *RegistrationService) GetByStudent(ctx context.Context, studentID string) (*models.RegistrationDetail, error) {
	key := registrationStudentCacheKey(studentID)
	if s.cache != nil {
		var cached models.RegistrationDetail
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("registration cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	registration, err := s.repo.FindByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	detail, err := s.hydrate(ctx, registration)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, detail, s.cacheTTL); err != nil {
			s.logger.Warn("registration cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return detail, nil
}

// ListByApproval returns registrations filtered on the approval flag.
func (s *RegistrationService) ListByApproval(ctx context.Context, approved bool) ([]models.Registration, error) {
	registrations, err := s.repo.ListByApproval(ctx, approved)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return registrations, nil
}

// StudentsByCourse returns the students whose registration includes the
// given course.
func (s *RegistrationService) StudentsByCourse(ctx context.Context, courseID string) ([]models.StudentDetail, error) {
	registrations, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations by course")
	}

	students := make([]models.StudentDetail, 0, len(registrations))
	for _, registration := range registrations {
		detail, err := s.students.FindDetailByID(ctx, registration.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("registration references missing student",
					zap.String("registration_id", registration.ID),
					zap.String("student_id", registration.StudentID))
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		students = append(students, *detail)
	}
	return students, nil
}

// ExportStudentsByCourse renders the course roster as a CSV document.
func (s *RegistrationService) ExportStudentsByCourse(ctx context.Context, courseID string) ([]byte, error) {
	students, err := s.StudentsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"student_no", "name", "email", "department", "session"},
		Rows:    make([]map[string]string, 0, len(students)),
	}
	for _, student := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"student_no": student.StudentNo,
			"name":       student.FullName(),
			"email":      student.Email,
			"department": student.DepartmentName,
			"session":    student.SessionName + " " + student.SessionYear,
		})
	}

	csv, err := s.roster.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return csv, nil
}

// Approve flips the approval flag and records the notification in the outbox
// within the same transaction. Delivery happens asynchronously; the approval
// stands even if every delivery attempt later fails.
func (s *RegistrationService) Approve(ctx context.Context, id string) (*models.Registration, error) {
	var approved *models.Registration
	err := s.tx.WithinTx(ctx, func(q database.Querier) error {
		registration, err := s.repo.FindByID(ctx, q, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
		}
		if _, err := s.repo.SetApproved(ctx, q, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve registration")
		}
		registration.IsApproved = true
		approved = registration

		if !s.outboxEnabled {
			return nil
		}
		entry, err := s.buildApprovalEntry(ctx, q, registration)
		if err != nil {
			return err
		}
		if err := s.outbox.Insert(ctx, q, entry); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue approval notification")
		}
		return nil
	})
	s.metrics.RecordRegistrationOperation("approve", err)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, approved.ID, approved.StudentID)
	s.logger.Info("registration approved",
		zap.String("registration_id", approved.ID),
		zap.String("student_id", approved.StudentID))
	return approved, nil
}

// Drop removes courses from an unapproved registration. The post-drop credit
// total is re-validated inside the transaction; a violation reverts the drop
// entirely.
func (s *RegistrationService) Drop(ctx context.Context, req DropCoursesRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid drop payload")
	}

	var updated *models.Registration
	err := s.tx.WithinTx(ctx, func(q database.Querier) error {
		registration, err := s.repo.FindUnapproved(ctx, q, req.StudentID, req.SessionID, req.DepartmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "registration not found or already approved")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
		}

		creditsToDrop, err := s.courses.TotalCredits(ctx, q, req.CourseIDs)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute credits to drop")
		}

		rows, err := s.repo.PullCourses(ctx, q, registration.ID, req.CourseIDs, creditsToDrop)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop courses")
		}
		if rows == 0 {
			return appErrors.Clone(appErrors.ErrConcurrentModification, "failed to update registration or already approved")
		}

		registration, err = s.repo.FindByID(ctx, q, registration.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload registration")
		}
		if registration.TotalCredit < s.minCredits || registration.TotalCredit > s.maxCredits {
			return appErrors.Clone(appErrors.ErrInvalidCreditTotal,
				fmt.Sprintf("dropping these courses would leave %d credits, outside %d-%d", registration.TotalCredit, s.minCredits, s.maxCredits))
		}

		if err := s.repo.UpdateCourseSetHash(ctx, q, registration.ID, models.CourseSetHash(registration.Courses)); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh course set hash")
		}
		updated = registration
		return nil
	})
	s.metrics.RecordRegistrationOperation("drop", err)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, updated.ID, updated.StudentID)
	s.logger.Info("courses dropped",
		zap.String("registration_id", updated.ID),
		zap.String("student_id", updated.StudentID),
		zap.Int("total_credit", updated.TotalCredit))
	return updated, nil
}

func (s *RegistrationService) hydrate(ctx context.Context, registration *models.Registration) (*models.RegistrationDetail, error) {
	detail := &models.RegistrationDetail{Registration: *registration}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		student, err := s.students.FindDetailByID(groupCtx, registration.StudentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		detail.Student = student.Student
		return nil
	})
	group.Go(func() error {
		department, err := s.departments.FindByID(groupCtx, registration.DepartmentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
		}
		detail.Department = *department
		return nil
	})
	group.Go(func() error {
		session, err := s.sessions.FindByID(groupCtx, registration.SessionID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
		}
		detail.Session = *session
		return nil
	})
	group.Go(func() error {
		courses, err := s.courses.FindByIDs(groupCtx, s.db, registration.Courses)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
		}
		detail.CourseList = courses
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *RegistrationService) buildApprovalEntry(ctx context.Context, q database.Querier, registration *models.Registration) (*models.NotificationOutbox, error) {
	student, err := s.students.FindByID(ctx, q, registration.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student for notification")
	}
	department, err := s.departments.FindByID(ctx, registration.DepartmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department for notification")
	}
	session, err := s.sessions.FindByID(ctx, registration.SessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session for notification")
	}
	courses, err := s.courses.FindByIDs(ctx, q, registration.Courses)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses for notification")
	}

	courseNames := make([]string, 0, len(courses))
	for _, course := range courses {
		courseNames = append(courseNames, course.Name)
	}
	payload, err := json.Marshal(mailer.ApprovalEmail{
		To:             student.Email,
		StudentName:    student.FullName(),
		DepartmentName: department.Name,
		SessionName:    session.Name,
		SessionYear:    session.Year,
		CourseNames:    courseNames,
		TotalCredit:    registration.TotalCredit,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode notification payload")
	}

	return &models.NotificationOutbox{
		ID:             uuid.NewString(),
		RegistrationID: registration.ID,
		Recipient:      student.Email,
		Payload:        payload,
		Status:         models.OutboxStatusPending,
	}, nil
}

func (s *RegistrationService) invalidate(ctx context.Context, registrationID, studentID string) {
	if s.cache == nil {
		return
	}
	for _, key := range []string{registrationCacheKey(registrationID), registrationStudentCacheKey(studentID)} {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("registration cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}
