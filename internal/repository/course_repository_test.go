package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCourseRepositoryTotalCredits(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(c.credits), 0)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(12))

	total, err := repo.TotalCredits(context.Background(), db, []string{"c1", "c1", "c2"})
	require.NoError(t, err)
	require.Equal(t, 12, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryTotalCreditsEmpty(t *testing.T) {
	db, _, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	total, err := repo.TotalCredits(context.Background(), db, nil)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestCourseRepositoryMissingIDs(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT req.id")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ghost"))

	missing, err := repo.MissingIDs(context.Background(), []string{"c1", "ghost"})
	require.NoError(t, err)
	require.Equal(t, []string{"ghost"}, missing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryList(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "short_name", "course_code", "credits", "offered_in", "created_at", "updated_at"}).
		AddRow("c1", "Algorithms", "Algo", "CSE-201", 3, "{sess-1}", now, now)
	mock.ExpectQuery("SELECT .+ FROM courses WHERE .+ ANY\\(offered_in\\)").
		WithArgs("sess-1").
		WillReturnRows(rows)

	courses, err := repo.List(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, "CSE-201", courses[0].CourseCode)
	require.NoError(t, mock.ExpectationsWereMet())
}
