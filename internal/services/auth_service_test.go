package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"farmfresh-backend/internal/models"
	"farmfresh-backend/internal/repository"
	"farmfresh-backend/pkg/metrics"
)

func newTestAuthService() *AuthService {
	svc := NewAuthService(repository.NewMemoryUserRepository(), testLogger(), metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry()))
	svc.SetHashCost(bcrypt.MinCost)
	return svc
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService()

	user, err := svc.Register(ctx, models.Registration{
		FirstName: "Ravi",
		LastName:  "Kumar",
		Email:     "ravi@example.com",
		Password:  "s3cret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, models.DefaultUserType, user.UserType)
	assert.NotEqual(t, "s3cret", user.PasswordHash)

	got, err := svc.Login(ctx, "ravi@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, models.UserSummary{
		Email:     "ravi@example.com",
		UserType:  "customer",
		FirstName: "Ravi",
		LastName:  "Kumar",
	}, got.Summary())
}

func TestAuthService_Errors(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService()

	_, err := svc.Register(ctx, models.Registration{Email: "x@example.com"})
	var ve *models.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = svc.Register(ctx, models.Registration{Email: "x@example.com", Password: "pw", UserType: "farmer"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, models.Registration{Email: "x@example.com", Password: "other"})
	assert.ErrorIs(t, err, models.ErrUserExists)

	_, err = svc.Login(ctx, "x@example.com", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "missing@example.com", "pw")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestAuthService_PasswordTooLong(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService()

	_, err := svc.Register(ctx, models.Registration{Email: "long@example.com", Password: strings.Repeat("a", 73)})
	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "password", ve.Field)

	_, err = svc.Login(ctx, "long@example.com", strings.Repeat("a", 73))
	assert.ErrorIs(t, err, models.ErrInvalidCredentials, "nothing was stored")

	_, err = svc.Register(ctx, models.Registration{Email: "edge@example.com", Password: strings.Repeat("a", 72)})
	assert.NoError(t, err)
}
