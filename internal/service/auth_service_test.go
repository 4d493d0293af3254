package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/confero-api/internal/models"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
)

type mockAuthRepo struct {
	users map[string]*models.User
	logs  []models.AuditLog
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func newTestAuthService(t *testing.T) (*AuthService, *mockAuthRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockAuthRepo{users: map[string]*models.User{
		"alex@example.org": {
			ID:           "u1",
			Email:        "alex@example.org",
			PasswordHash: string(hash),
			FullName:     "Alex Doe",
			Roles:        pq.StringArray{"USER", "ADMIN"},
			Active:       true,
		},
	}}
	svc := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "confero-test",
	})
	return svc, repo
}

func TestAuthLoginIssuesToken(t *testing.T) {
	svc, repo := newTestAuthService(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "alex@example.org", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "u1", res.User.ID)
	assert.Contains(t, res.User.Roles, models.RoleAdmin)
	require.Len(t, repo.logs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.logs[0].Action)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	actor := claims.Actor()
	assert.True(t, actor.IsAdmin())
	assert.True(t, actor.HasRole(models.RoleUser))
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc, _ := newTestAuthService(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "alex@example.org", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginUnknownEmail(t *testing.T) {
	svc, _ := newTestAuthService(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.org", Password: "correct-horse"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	svc, repo := newTestAuthService(t)
	repo.users["alex@example.org"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "alex@example.org", Password: "correct-horse"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newTestAuthService(t)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
