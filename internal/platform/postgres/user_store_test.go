package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/inkwell/internal/domain"
	"github.com/phrazzld/inkwell/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserStore(t *testing.T) (*PostgresUserStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresUserStore(db, bcrypt.MinCost, nil), mock
}

func TestUserStoreCreateHashesPassword(t *testing.T) {
	t.Parallel()

	s, mock := newUserStore(t)
	user, err := domain.NewUser("Ada Writer", "Writer@Example.com", "password123")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO users").
		WithArgs(user.ID, "Ada Writer", "writer@example.com", domain.RoleUser, sqlmock.AnyArg(), user.CreatedAt, user.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), user))
	assert.Empty(t, user.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte("password123")))
}

func TestUserStoreCreateDuplicateEmail(t *testing.T) {
	t.Parallel()

	s, mock := newUserStore(t)
	user, err := domain.NewUser("Ada Writer", "writer@example.com", "password123")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: usersEmailConstraint})

	err = s.Create(context.Background(), user)
	assert.ErrorIs(t, err, store.ErrEmailExists)
}

func TestUserStoreGetByEmail(t *testing.T) {
	t.Parallel()

	s, mock := newUserStore(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("FROM users WHERE email = \\$1").
		WithArgs("writer@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role", "hashed_password", "created_at", "updated_at"}).
			AddRow(id.String(), "Ada Writer", "writer@example.com", "user", "$2a$hash", now, now))
	mock.ExpectQuery("FROM users WHERE email = \\$1").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	user, err := s.GetByEmail(context.Background(), "  Writer@example.com ")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "Ada Writer", user.Name)
	assert.Equal(t, domain.RoleUser, user.Role)

	_, err = s.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMapError(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"email unique", &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: usersEmailConstraint}, store.ErrEmailExists},
		{"other unique", &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "other"}, store.ErrDuplicate},
		{"foreign key", &pgconn.PgError{Code: foreignKeyViolationCode}, store.ErrInvalidEntity},
		{"check", &pgconn.PgError{Code: checkViolationCode, ConstraintName: "contents_content_iff_completed"}, store.ErrInvalidEntity},
		{"not null", &pgconn.PgError{Code: notNullViolationCode}, store.ErrInvalidEntity},
		{"wrapped pg error", fmt.Errorf("exec: %w", &pgconn.PgError{Code: foreignKeyViolationCode}), store.ErrInvalidEntity},
		{"unmapped", plain, plain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, MapError(tt.in), tt.want)
		})
	}

	assert.NoError(t, MapError(nil))
	assert.True(t, IsNotFoundError(store.ErrContentNotFound))
	assert.False(t, IsNotFoundError(plain))
}

func TestMigrationFilesEmbedded(t *testing.T) {
	t.Parallel()

	files, err := MigrationFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"20260901120000_create_users_table.sql",
		"20260901120100_create_contents_table.sql",
	}, files)
}

func TestMigrateRejectsUnknownCommand(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	err = Migrate(context.Background(), db, "sideways", nil)
	assert.ErrorContains(t, err, "unknown migration command")
}
