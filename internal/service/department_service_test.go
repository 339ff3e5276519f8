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

type mockDepartmentRepo struct {
	departments map[string]models.AcademicDepartment
}

func (m *mockDepartmentRepo) FindByID(ctx context.Context, id string) (*models.AcademicDepartment, error) {
	if d, ok := m.departments[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDepartmentRepo) List(ctx context.Context) ([]models.AcademicDepartment, error) {
	var list []models.AcademicDepartment
	for _, d := range m.departments {
		list = append(list, d)
	}
	return list, nil
}

func (m *mockDepartmentRepo) Create(ctx context.Context, department *models.AcademicDepartment) error {
	if m.departments == nil {
		m.departments = make(map[string]models.AcademicDepartment)
	}
	department.ID = "dept-new"
	m.departments[department.ID] = *department
	return nil
}

func (m *mockDepartmentRepo) Update(ctx context.Context, department *models.AcademicDepartment) error {
	m.departments[department.ID] = *department
	return nil
}

func TestDepartmentCreate(t *testing.T) {
	repo := &mockDepartmentRepo{}
	svc := NewDepartmentService(repo, validator.New(), zap.NewNop())

	department, err := svc.Create(context.Background(), DepartmentRequest{Name: "Computer Science", ShortName: "CSE"})
	require.NoError(t, err)
	assert.Equal(t, "dept-new", department.ID)

	_, err = svc.Create(context.Background(), DepartmentRequest{Name: "Physics"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDepartmentUpdate(t *testing.T) {
	repo := &mockDepartmentRepo{departments: map[string]models.AcademicDepartment{
		"d1": {ID: "d1", Name: "Computer Science", ShortName: "CSE"},
	}}
	svc := NewDepartmentService(repo, validator.New(), zap.NewNop())

	department, err := svc.Update(context.Background(), "d1", DepartmentRequest{Name: "Computer Science & Engineering", ShortName: "CSE"})
	require.NoError(t, err)
	assert.Equal(t, "Computer Science & Engineering", department.Name)

	_, err = svc.Update(context.Background(), "ghost", DepartmentRequest{Name: "Physics", ShortName: "PHY"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDepartmentGetByID(t *testing.T) {
	repo := &mockDepartmentRepo{departments: map[string]models.AcademicDepartment{
		"d1": {ID: "d1", Name: "Computer Science"},
	}}
	svc := NewDepartmentService(repo, validator.New(), zap.NewNop())

	department, err := svc.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "Computer Science", department.Name)

	_, err = svc.GetByID(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
