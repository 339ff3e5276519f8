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
	appErrors "github.com/campus-adm/university-api/pkg/errors"
)

type mockCourseRepo struct {
	courses map[string]models.Course
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) List(ctx context.Context, sessionID string) ([]models.Course, error) {
	var list []models.Course
	for _, c := range m.courses {
		if sessionID != "" {
			offered := false
			for _, s := range c.OfferedIn {
				if s == sessionID {
					offered = true
					break
				}
			}
			if !offered {
				continue
			}
		}
		list = append(list, c)
	}
	return list, nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if m.courses == nil {
		m.courses = make(map[string]models.Course)
	}
	course.ID = "course-new"
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id string) (int64, error) {
	if _, ok := m.courses[id]; !ok {
		return 0, nil
	}
	delete(m.courses, id)
	return 1, nil
}

func TestCourseCreate(t *testing.T) {
	repo := &mockCourseRepo{}
	svc := NewCourseService(repo, &mockSessionReader{}, validator.New(), zap.NewNop())

	course, err := svc.Create(context.Background(), CreateCourseRequest{
		Name:       "Algorithms",
		ShortName:  "Algo",
		CourseCode: "CSE-201",
		Credits:    3,
		OfferedIn:  []string{"sess1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "course-new", course.ID)
	assert.Equal(t, 3, course.Credits)
}

func TestCourseCreateCreditsOutOfRange(t *testing.T) {
	svc := NewCourseService(&mockCourseRepo{}, &mockSessionReader{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateCourseRequest{
		Name:       "Algorithms",
		ShortName:  "Algo",
		CourseCode: "CSE-201",
		Credits:    6,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseCreateUnknownSession(t *testing.T) {
	svc := NewCourseService(&mockCourseRepo{}, &mockSessionReader{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateCourseRequest{
		Name:       "Algorithms",
		ShortName:  "Algo",
		CourseCode: "CSE-201",
		Credits:    3,
		OfferedIn:  []string{"missing"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseUpdate(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"c1": {ID: "c1", Name: "Algorithms", ShortName: "Algo", CourseCode: "CSE-201", Credits: 3},
	}}
	svc := NewCourseService(repo, &mockSessionReader{}, validator.New(), zap.NewNop())

	credits := 4
	course, err := svc.Update(context.Background(), "c1", UpdateCourseRequest{Credits: &credits})
	require.NoError(t, err)
	assert.Equal(t, 4, course.Credits)
	assert.Equal(t, "Algorithms", course.Name)

	_, err = svc.Update(context.Background(), "ghost", UpdateCourseRequest{Credits: &credits})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseListBySession(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"c1": {ID: "c1", OfferedIn: []string{"sess1"}},
		"c2": {ID: "c2", OfferedIn: []string{"sess2"}},
	}}
	svc := NewCourseService(repo, &mockSessionReader{}, validator.New(), zap.NewNop())

	courses, err := svc.List(context.Background(), "sess1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "c1", courses[0].ID)
}

func TestCourseDelete(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{"c1": {ID: "c1"}}}
	svc := NewCourseService(repo, &mockSessionReader{}, validator.New(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "c1"))
	assert.Empty(t, repo.courses)

	err := svc.Delete(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
