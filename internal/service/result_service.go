package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-adm/university-api/internal/models"
	"github.com/campus-adm/university-api/pkg/database"
	appErrors "github.com/campus-adm/university-api/pkg/errors"
	"github.com/campus-adm/university-api/pkg/export"
)

type resultRepository interface {
	FindByRegistration(ctx context.Context, q database.Querier, registrationID string) (*models.StudentResult, error)
	Upsert(ctx context.Context, q database.Querier, result *models.StudentResult) error
}

type resultLedger interface {
	FindByID(ctx context.Context, q database.Querier, id string) (*models.Registration, error)
	SetResultPublished(ctx context.Context, q database.Querier, id string) error
}

type transcriptRenderer interface {
	Render(t export.Transcript) ([]byte, error)
}

// CourseMarksInput carries the exam component marks for one course.
type CourseMarksInput struct {
	CourseID  string  `json:"course_id" validate:"required"`
	MidTerm1  float64 `json:"mid_term_1" validate:"min=0,max=25"`
	MidTerm2  float64 `json:"mid_term_2" validate:"min=0,max=25"`
	FinalTerm float64 `json:"final_term" validate:"min=0,max=50"`
}

// PublishResultRequest describes a result publication payload.
type PublishResultRequest struct {
	RegistrationID string             `json:"registration_id" validate:"required"`
	Marks          []CourseMarksInput `json:"marks" validate:"required,min=1,dive"`
}

// ResultService derives grades from course marks and publishes them against
// approved registrations.
type ResultService struct {
	repo          resultRepository
	registrations resultLedger
	courses       courseCatalog
	students      studentStore
	departments   departmentReader
	sessions      sessionReader
	transcripts   transcriptRenderer
	cache         registrationCache
	tx            database.TxRunner
	db            database.Querier
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewResultService constructs ResultService.
func NewResultService(repo resultRepository, registrations resultLedger, courses courseCatalog, students studentStore, departments departmentReader, sessions sessionReader, transcripts transcriptRenderer, cache registrationCache, tx database.TxRunner, db database.Querier, validate *validator.Validate, logger *zap.Logger) *ResultService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{
		repo:          repo,
		registrations: registrations,
		courses:       courses,
		students:      students,
		departments:   departments,
		sessions:      sessions,
		transcripts:   transcripts,
		cache:         cache,
		tx:            tx,
		db:            db,
		validator:     validate,
		logger:        logger,
	}
}

// Publish computes the averaged grade from the submitted marks and writes the
// result and the registration's published flag in one transaction. Only
// approved registrations accept results.
func (s *ResultService) Publish(ctx context.Context, req PublishResultRequest) (*models.StudentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result payload")
	}

	var published *models.StudentResult
	err := s.tx.WithinTx(ctx, func(q database.Querier) error {
		registration, err := s.registrations.FindByID(ctx, q, req.RegistrationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
		}
		if !registration.IsApproved {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "registration is not approved")
		}

		registered := make(map[string]bool, len(registration.Courses))
		for _, courseID := range registration.Courses {
			registered[courseID] = true
		}
		marks := make(models.CourseMarksList, 0, len(req.Marks))
		var sum float64
		for _, input := range req.Marks {
			if !registered[input.CourseID] {
				return appErrors.Clone(appErrors.ErrValidation,
					fmt.Sprintf("course %s is not part of this registration", input.CourseID))
			}
			total := input.MidTerm1 + input.MidTerm2 + input.FinalTerm
			marks = append(marks, models.CourseMarks{
				CourseID:  input.CourseID,
				MidTerm1:  input.MidTerm1,
				MidTerm2:  input.MidTerm2,
				FinalTerm: input.FinalTerm,
				Total:     total,
			})
			sum += total
		}
		average := sum / float64(len(marks))
		grade, points := gradeFor(average)

		result := &models.StudentResult{
			RegistrationID: registration.ID,
			StudentID:      registration.StudentID,
			CoursesMarks:   marks,
			AverageMarks:   average,
			AvgGrade:       grade,
			AvgGradePoints: points,
		}
		if err := s.repo.Upsert(ctx, q, result); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save result")
		}
		if err := s.registrations.SetResultPublished(ctx, q, registration.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark result published")
		}
		published = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		for _, key := range []string{registrationCacheKey(published.RegistrationID), registrationStudentCacheKey(published.StudentID)} {
			if err := s.cache.Delete(ctx, key); err != nil {
				s.logger.Warn("registration cache invalidation failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	s.logger.Info("result published",
		zap.String("registration_id", published.RegistrationID),
		zap.String("student_id", published.StudentID),
		zap.String("grade", string(published.AvgGrade)))
	return published, nil
}

// GetByRegistration returns the published result for a registration.
func (s *ResultService) GetByRegistration(ctx context.Context, registrationID string) (*models.StudentResult, error) {
	result, err := s.repo.FindByRegistration(ctx, s.db, registrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}
	return result, nil
}

// Transcript renders the student's graded registration as a PDF document.
func (s *ResultService) Transcript(ctx context.Context, registrationID string) ([]byte, error) {
	result, err := s.GetByRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	registration, err := s.registrations.FindByID(ctx, s.db, registrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	student, err := s.students.FindDetailByID(ctx, registration.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	courses, err := s.courses.FindByIDs(ctx, s.db, registration.Courses)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}

	byID := make(map[string]models.Course, len(courses))
	for _, course := range courses {
		byID[course.ID] = course
	}
	lines := make([]export.TranscriptCourse, 0, len(result.CoursesMarks))
	for _, marks := range result.CoursesMarks {
		course := byID[marks.CourseID]
		lines = append(lines, export.TranscriptCourse{
			CourseCode: course.CourseCode,
			CourseName: course.Name,
			Credits:    course.Credits,
			MidTerm1:   marks.MidTerm1,
			MidTerm2:   marks.MidTerm2,
			FinalTerm:  marks.FinalTerm,
			Total:      marks.Total,
		})
	}

	pdf, err := s.transcripts.Render(export.Transcript{
		StudentName:    student.FullName(),
		StudentID:      student.StudentNo,
		DepartmentName: student.DepartmentName,
		SessionName:    student.SessionName,
		SessionYear:    student.SessionYear,
		Courses:        lines,
		AverageMarks:   result.AverageMarks,
		Grade:          string(result.AvgGrade),
		GradePoints:    result.AvgGradePoints,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
	}
	return pdf, nil
}

// gradeFor maps an average mark onto the letter grade scale.
func gradeFor(average float64) (models.Grade, float64) {
	switch {
	case average >= 80:
		return models.GradeA, 4.00
	case average >= 70:
		return models.GradeB, 3.50
	case average >= 60:
		return models.GradeC, 3.00
	case average >= 50:
		return models.GradeD, 2.50
	default:
		return models.GradeF, 0.00
	}
}
