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

type mockSessionRepo struct {
	sessions map[string]models.AcademicSession
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.AcademicSession, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) ExistsByNameAndYear(ctx context.Context, name, year string) (bool, error) {
	for _, s := range m.sessions {
		if s.Name == name && s.Year == year {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSessionRepo) List(ctx context.Context) ([]models.AcademicSession, error) {
	var list []models.AcademicSession
	for _, s := range m.sessions {
		list = append(list, s)
	}
	return list, nil
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.AcademicSession) error {
	if m.sessions == nil {
		m.sessions = make(map[string]models.AcademicSession)
	}
	session.ID = "sess-new"
	m.sessions[session.ID] = *session
	return nil
}

func validSessionRequest() CreateSessionRequest {
	return CreateSessionRequest{
		Name:       "Autumn",
		Year:       "2024",
		Code:       "01",
		StartMonth: "September",
		EndMonth:   "December",
	}
}

func TestSessionCreate(t *testing.T) {
	repo := &mockSessionRepo{}
	svc := NewSessionService(repo, validator.New(), zap.NewNop())

	session, err := svc.Create(context.Background(), validSessionRequest())
	require.NoError(t, err)
	assert.Equal(t, "sess-new", session.ID)
	assert.Equal(t, "Autumn", session.Name)
}

func TestSessionCreateValidation(t *testing.T) {
	svc := NewSessionService(&mockSessionRepo{}, validator.New(), zap.NewNop())

	req := validSessionRequest()
	req.Name = "Winter"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = validSessionRequest()
	req.Year = "24"
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSessionCreateDuplicateYear(t *testing.T) {
	repo := &mockSessionRepo{sessions: map[string]models.AcademicSession{
		"s1": {ID: "s1", Name: "Autumn", Year: "2024"},
	}}
	svc := NewSessionService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), validSessionRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSessionGetByID(t *testing.T) {
	repo := &mockSessionRepo{sessions: map[string]models.AcademicSession{
		"s1": {ID: "s1", Name: "Autumn", Year: "2024"},
	}}
	svc := NewSessionService(repo, validator.New(), zap.NewNop())

	session, err := svc.GetByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "2024", session.Year)

	_, err = svc.GetByID(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
