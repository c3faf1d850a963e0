package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	t.Parallel()

	user, err := NewUser(" Ada Writer ", "  Writer@Example.com ", "correct-horse")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "Ada Writer", user.Name)
	assert.Equal(t, "writer@example.com", user.Email)
	assert.Equal(t, RoleUser, user.Role)
	assert.Equal(t, "correct-horse", user.Password)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)
}

func TestUserValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		user    User
		wantErr error
	}{
		{
			name:    "missing id",
			user:    User{Email: "a@example.com", Password: "long-enough"},
			wantErr: ErrEmptyUserID,
		},
		{
			name:    "missing email",
			user:    User{ID: uuid.New(), Name: "Ada", Role: RoleUser, Password: "long-enough"},
			wantErr: ErrEmptyEmail,
		},
		{
			name:    "malformed email",
			user:    User{ID: uuid.New(), Name: "Ada", Role: RoleUser, Email: "not-an-email", Password: "long-enough"},
			wantErr: ErrInvalidEmail,
		},
		{
			name:    "short password",
			user:    User{ID: uuid.New(), Name: "Ada", Role: RoleUser, Email: "a@example.com", Password: "short"},
			wantErr: ErrPasswordTooShort,
		},
		{
			name: "long password",
			user: User{
				ID:       uuid.New(),
				Name:     "Ada",
				Role:     RoleUser,
				Email:    "a@example.com",
				Password: strings.Repeat("x", MaxPasswordLength+1),
			},
			wantErr: ErrPasswordTooLong,
		},
		{
			name:    "missing name",
			user:    User{ID: uuid.New(), Name: "  ", Role: RoleUser, Email: "a@example.com", Password: "long-enough"},
			wantErr: ErrEmptyName,
		},
		{
			name: "long name",
			user: User{
				ID:       uuid.New(),
				Name:     strings.Repeat("n", MaxNameLength+1),
				Role:     RoleUser,
				Email:    "a@example.com",
				Password: "long-enough",
			},
			wantErr: ErrNameTooLong,
		},
		{
			name:    "unknown role",
			user:    User{ID: uuid.New(), Name: "Ada", Role: "owner", Email: "a@example.com", Password: "long-enough"},
			wantErr: ErrInvalidRole,
		},
		{
			name:    "stored user without hash",
			user:    User{ID: uuid.New(), Name: "Ada", Role: RoleUser, Email: "a@example.com"},
			wantErr: ErrEmptyHashedPassword,
		},
		{
			name: "stored user with hash",
			user: User{ID: uuid.New(), Name: "Ada", Role: RoleUser, Email: "a@example.com", HashedPassword: "$2a$10$hash"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.user.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
