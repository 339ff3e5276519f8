package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/campus-adm/university-api/internal/models"
)

func newRegistrationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRegistrationRepositoryExistsDuplicate(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	hash := models.CourseSetHash([]string{"c1", "c2"})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("stu-1", "dept-1", "sess-1", hash).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsDuplicate(context.Background(), db, "stu-1", "dept-1", "sess-1", hash)
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	registration := &models.Registration{
		StudentID:    "stu-1",
		StudentNo:    "2024-001",
		Courses:      pq.StringArray{"c1", "c2", "c3"},
		TotalCredit:  12,
		DepartmentID: "dept-1",
		SessionID:    "sess-1",
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "2024-001", sqlmock.AnyArg(), 12, "dept-1", "sess-1",
			false, false, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), db, registration)
	require.NoError(t, err)
	require.NotEmpty(t, registration.ID)
	require.Equal(t, models.CourseSetHash([]string{"c1", "c2", "c3"}), registration.CourseSetHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "student_no", "courses", "total_credit",
		"department_id", "session_id", "is_approved", "is_result_published",
		"course_set_hash", "created_at", "updated_at"}).
		AddRow("reg-1", "stu-1", "2024-001", "{c1,c2}", 9, "dept-1", "sess-1", false, false, "h", now, now)
	mock.ExpectQuery("SELECT .+ FROM registrations WHERE id").
		WithArgs("reg-1").
		WillReturnRows(rows)

	registration, err := repo.FindByID(context.Background(), db, "reg-1")
	require.NoError(t, err)
	require.Equal(t, "reg-1", registration.ID)
	require.Equal(t, pq.StringArray{"c1", "c2"}, registration.Courses)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryPullCourses(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations")).
		WithArgs("reg-1", sqlmock.AnyArg(), 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := repo.PullCourses(context.Background(), db, "reg-1", []string{"c4"}, 3)
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryPullCoursesNoRows(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	// Approved registrations do not match the guarded UPDATE.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations")).
		WithArgs("reg-1", sqlmock.AnyArg(), 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := repo.PullCourses(context.Background(), db, "reg-1", []string{"c4"}, 3)
	require.NoError(t, err)
	require.EqualValues(t, 0, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositorySetApproved(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET is_approved = TRUE")).
		WithArgs("reg-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := repo.SetApproved(context.Background(), db, "reg-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}
