package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campus-adm/university-api/internal/models"
	"github.com/campus-adm/university-api/pkg/database"
	appErrors "github.com/campus-adm/university-api/pkg/errors"
	"github.com/campus-adm/university-api/pkg/export"
)

type mockResultRepo struct {
	results map[string]models.StudentResult
}

func (m *mockResultRepo) FindByRegistration(ctx context.Context, q database.Querier, registrationID string) (*models.StudentResult, error) {
	if r, ok := m.results[registrationID]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockResultRepo) Upsert(ctx context.Context, q database.Querier, result *models.StudentResult) error {
	if m.results == nil {
		m.results = make(map[string]models.StudentResult)
	}
	m.results[result.RegistrationID] = *result
	return nil
}

type mockResultLedger struct {
	registrations map[string]models.Registration
	published     []string
}

func (m *mockResultLedger) FindByID(ctx context.Context, q database.Querier, id string) (*models.Registration, error) {
	if r, ok := m.registrations[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockResultLedger) SetResultPublished(ctx context.Context, q database.Querier, id string) error {
	m.published = append(m.published, id)
	return nil
}

type mockTranscriptRenderer struct {
	rendered *export.Transcript
}

func (m *mockTranscriptRenderer) Render(t export.Transcript) ([]byte, error) {
	m.rendered = &t
	return []byte("%PDF-1.4"), nil
}

func newTestResultService(repo *mockResultRepo, ledger *mockResultLedger, catalog *mockCourseCatalog, students *mockStudentStore, renderer *mockTranscriptRenderer) *ResultService {
	return NewResultService(repo, ledger, catalog, students, &mockDepartmentReader{}, &mockSessionReader{}, renderer, nil, &fakeRunner{}, nil, validator.New(), zap.NewNop())
}

func approvedRegistration(id string) models.Registration {
	return models.Registration{
		ID: id, StudentID: "s1", DepartmentID: "d1", SessionID: "sess1",
		Courses: []string{"c1", "c2"}, TotalCredit: 9, IsApproved: true,
	}
}

func TestResultPublish(t *testing.T) {
	repo := &mockResultRepo{}
	ledger := &mockResultLedger{registrations: map[string]models.Registration{"r1": approvedRegistration("r1")}}
	catalog := &mockCourseCatalog{credits: map[string]int{"c1": 4, "c2": 5}}
	students := &mockStudentStore{students: map[string]models.Student{"s1": approvedStudent("s1")}}
	svc := newTestResultService(repo, ledger, catalog, students, &mockTranscriptRenderer{})

	result, err := svc.Publish(context.Background(), PublishResultRequest{
		RegistrationID: "r1",
		Marks: []CourseMarksInput{
			{CourseID: "c1", MidTerm1: 20, MidTerm2: 20, FinalTerm: 45},
			{CourseID: "c2", MidTerm1: 15, MidTerm2: 15, FinalTerm: 40},
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 77.5, result.AverageMarks, 0.001)
	assert.Equal(t, models.GradeB, result.AvgGrade)
	assert.InDelta(t, 3.50, result.AvgGradePoints, 0.001)
	assert.Equal(t, []string{"r1"}, ledger.published)
	assert.Contains(t, repo.results, "r1")
}

func TestResultPublishUnapprovedRegistration(t *testing.T) {
	registration := approvedRegistration("r1")
	registration.IsApproved = false
	ledger := &mockResultLedger{registrations: map[string]models.Registration{"r1": registration}}
	svc := newTestResultService(&mockResultRepo{}, ledger, &mockCourseCatalog{}, &mockStudentStore{}, &mockTranscriptRenderer{})

	_, err := svc.Publish(context.Background(), PublishResultRequest{
		RegistrationID: "r1",
		Marks:          []CourseMarksInput{{CourseID: "c1", FinalTerm: 40}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, ledger.published)
}

func TestResultPublishUnregisteredCourse(t *testing.T) {
	ledger := &mockResultLedger{registrations: map[string]models.Registration{"r1": approvedRegistration("r1")}}
	svc := newTestResultService(&mockResultRepo{}, ledger, &mockCourseCatalog{}, &mockStudentStore{}, &mockTranscriptRenderer{})

	_, err := svc.Publish(context.Background(), PublishResultRequest{
		RegistrationID: "r1",
		Marks:          []CourseMarksInput{{CourseID: "c9", FinalTerm: 40}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestResultPublishMarksValidation(t *testing.T) {
	ledger := &mockResultLedger{registrations: map[string]models.Registration{"r1": approvedRegistration("r1")}}
	svc := newTestResultService(&mockResultRepo{}, ledger, &mockCourseCatalog{}, &mockStudentStore{}, &mockTranscriptRenderer{})

	// Mid-term marks cap at 25.
	_, err := svc.Publish(context.Background(), PublishResultRequest{
		RegistrationID: "r1",
		Marks:          []CourseMarksInput{{CourseID: "c1", MidTerm1: 30, FinalTerm: 40}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestResultGetByRegistrationMissing(t *testing.T) {
	svc := newTestResultService(&mockResultRepo{}, &mockResultLedger{}, &mockCourseCatalog{}, &mockStudentStore{}, &mockTranscriptRenderer{})

	_, err := svc.GetByRegistration(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestResultTranscript(t *testing.T) {
	repo := &mockResultRepo{results: map[string]models.StudentResult{
		"r1": {
			RegistrationID: "r1",
			StudentID:      "s1",
			CoursesMarks: models.CourseMarksList{
				{CourseID: "c1", MidTerm1: 20, MidTerm2: 20, FinalTerm: 45, Total: 85},
			},
			AverageMarks:   85,
			AvgGrade:       models.GradeA,
			AvgGradePoints: 4.00,
		},
	}}
	ledger := &mockResultLedger{registrations: map[string]models.Registration{"r1": approvedRegistration("r1")}}
	catalog := &mockCourseCatalog{credits: map[string]int{"c1": 4, "c2": 5}, names: map[string]string{"c1": "Algorithms", "c2": "Databases"}}
	students := &mockStudentStore{students: map[string]models.Student{"s1": approvedStudent("s1")}}
	renderer := &mockTranscriptRenderer{}
	svc := newTestResultService(repo, ledger, catalog, students, renderer)

	pdf, err := svc.Transcript(context.Background(), "r1")
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)

	require.NotNil(t, renderer.rendered)
	assert.Equal(t, "Ada Lovelace", renderer.rendered.StudentName)
	assert.Equal(t, "A", renderer.rendered.Grade)
	require.Len(t, renderer.rendered.Courses, 1)
	assert.Equal(t, "Algorithms", renderer.rendered.Courses[0].CourseName)
}

func TestGradeScale(t *testing.T) {
	cases := []struct {
		average float64
		grade   models.Grade
		points  float64
	}{
		{80, models.GradeA, 4.00},
		{79.9, models.GradeB, 3.50},
		{70, models.GradeB, 3.50},
		{60, models.GradeC, 3.00},
		{50, models.GradeD, 2.50},
		{49.9, models.GradeF, 0.00},
	}
	for _, tc := range cases {
		grade, points := gradeFor(tc.average)
		assert.Equal(t, tc.grade, grade, "average %.1f", tc.average)
		assert.Equal(t, tc.points, points, "average %.1f", tc.average)
	}
}
