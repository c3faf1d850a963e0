package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/inkwell/internal/domain"
	"github.com/phrazzld/inkwell/internal/mocks"
	"github.com/phrazzld/inkwell/internal/platform/logger"
	"github.com/phrazzld/inkwell/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T, users store.UserStore) (*UserServiceImpl, sqlmock.Sqlmock) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log, _ := logger.NewTestLogger()
	svc, err := NewUserService(users, &mocks.MockPasswordVerifier{}, db, log)
	require.NoError(t, err)
	return svc, dbMock
}

func TestCreateUserCommits(t *testing.T) {
	t.Parallel()
	users := mocks.NewMockUserStore()
	svc, dbMock := newUserService(t, users)
	dbMock.ExpectBegin()
	dbMock.ExpectCommit()

	user, err := svc.CreateUser(context.Background(), "Ada Writer", " Writer@Example.com ", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, "writer@example.com", user.Email)
	assert.Equal(t, "Ada Writer", user.Name)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Empty(t, user.Password)
	require.NoError(t, dbMock.ExpectationsWereMet())

	found, err := svc.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, found.Email)
}

func TestCreateUserRollsBackOnDuplicate(t *testing.T) {
	t.Parallel()
	users := mocks.NewMockUserStore()
	svc, dbMock := newUserService(t, users)

	dbMock.ExpectBegin()
	dbMock.ExpectCommit()
	_, err := svc.CreateUser(context.Background(), "Ada Writer", "writer@example.com", "correct horse battery")
	require.NoError(t, err)

	dbMock.ExpectBegin()
	dbMock.ExpectRollback()
	_, err = svc.CreateUser(context.Background(), "Ada Writer", "writer@example.com", "another password")
	assert.ErrorIs(t, err, store.ErrEmailExists)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCreateUserValidatesBeforeTransaction(t *testing.T) {
	t.Parallel()
	svc, dbMock := newUserService(t, mocks.NewMockUserStore())

	_, err := svc.CreateUser(context.Background(), "Ada Writer", "not-an-email", "correct horse battery")
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	_, err = svc.CreateUser(context.Background(), "Ada Writer", "writer@example.com", "short")
	assert.ErrorIs(t, err, domain.ErrInvalidPassword)
	_, err = svc.CreateUser(context.Background(), " ", "writer@example.com", "correct horse battery")
	assert.ErrorIs(t, err, domain.ErrEmptyName)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCreateUserUsesTransactionalStore(t *testing.T) {
	t.Parallel()
	users := &mocks.TestifyMockUserStore{}
	txUsers := &mocks.TestifyMockUserStore{}
	svc, dbMock := newUserService(t, users)

	cause := errors.New("insert failed")
	users.On("WithTx", mock.AnythingOfType("*sql.Tx")).Return(txUsers)
	txUsers.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(cause)
	dbMock.ExpectBegin()
	dbMock.ExpectRollback()

	_, err := svc.CreateUser(context.Background(), "Ada Writer", "writer@example.com", "correct horse battery")
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, cause)
	users.AssertExpectations(t)
	txUsers.AssertExpectations(t)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	users := mocks.NewMockUserStore()
	svc, dbMock := newUserService(t, users)
	dbMock.ExpectBegin()
	dbMock.ExpectCommit()
	created, err := svc.CreateUser(context.Background(), "Ada Writer", "writer@example.com", "correct horse battery")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"valid", "writer@example.com", "correct horse battery", nil},
		{"email is normalized", " WRITER@example.com", "correct horse battery", nil},
		{"wrong password", "writer@example.com", "incorrect horse", ErrInvalidCredentials},
		{"unknown email", "nobody@example.com", "correct horse battery", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Authenticate(context.Background(), tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, created.ID, user.ID)
		})
	}
}

func TestAuthenticateStoreFailure(t *testing.T) {
	t.Parallel()
	users := mocks.NewMockUserStore()
	users.GetByEmailFn = func(context.Context, string) (*domain.User, error) {
		return nil, sql.ErrConnDone
	}
	svc, _ := newUserService(t, users)

	_, err := svc.Authenticate(context.Background(), "writer@example.com", "pw")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.GetUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestNewUserServiceValidation(t *testing.T) {
	t.Parallel()
	log, _ := logger.NewTestLogger()
	_, err := NewUserService(nil, &mocks.MockPasswordVerifier{}, &sql.DB{}, log)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
