package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/models"
	appErrors "github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/errors"
)

type mockAuthRepo struct {
	user             *models.User
	created          *models.User
	findByEmailErr   error
	findByIDErr      error
	createErr        error
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = user
	return nil
}

func newAuthFixture(t *testing.T, password string, active bool) (*AuthService, *mockAuthRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &mockAuthRepo{user: &models.User{
		ID:           "usr-1",
		Email:        "secretaria@escola.edu.br",
		PasswordHash: string(hash),
		FullName:     "Ana Souza",
		Role:         models.RoleSecretary,
		Active:       active,
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "matricula-escolar"})
	return svc, repo
}

func TestLogin(t *testing.T) {
	svc, repo := newAuthFixture(t, "s3nh4-forte", true)

	res, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "secretaria@escola.edu.br",
		Password: "s3nh4-forte",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, "usr-1", res.User.ID)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", claims.UserID)
	assert.Equal(t, models.RoleSecretary, claims.Role)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	wrongPassword, _ := newAuthFixture(t, "correta", true)
	_, badPassErr := wrongPassword.Login(context.Background(), models.LoginRequest{
		Email: "secretaria@escola.edu.br", Password: "errada",
	})

	inactive, _ := newAuthFixture(t, "correta", false)
	_, inactiveErr := inactive.Login(context.Background(), models.LoginRequest{
		Email: "secretaria@escola.edu.br", Password: "correta",
	})

	require.Error(t, badPassErr)
	require.Error(t, inactiveErr)
	assert.Equal(t, appErrors.FromError(badPassErr).Code, appErrors.FromError(inactiveErr).Code)
	assert.Equal(t, appErrors.FromError(badPassErr).Message, appErrors.FromError(inactiveErr).Message)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Status, appErrors.FromError(badPassErr).Status)
}

func TestValidateTokenExpired(t *testing.T) {
	svc, repo := newAuthFixture(t, "qualquer", true)

	shortLived := NewAuthService(repo, nil, nil, AuthConfig{Secret: "test-secret", Expiration: time.Millisecond, Issuer: "matricula-escolar"})
	token, _, err := shortLived.IssueToken(repo.user)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErrors.FromError(err).Status)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc, repo := newAuthFixture(t, "qualquer", true)
	other := NewAuthService(repo, nil, nil, AuthConfig{Secret: "another-secret", Expiration: time.Hour})

	token, _, err := other.IssueToken(repo.user)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErrors.FromError(err).Status)
}

func TestValidateTokenGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t, "qualquer", true)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErrors.FromError(err).Status)
}

func TestBootstrapCreatesAdmin(t *testing.T) {
	repo := &mockAuthRepo{findByEmailErr: sql.ErrNoRows}
	svc := NewAuthService(repo, nil, nil, AuthConfig{Secret: "test-secret", Expiration: time.Hour})

	err := svc.Bootstrap(context.Background(), "diretoria@escola.edu.br", "s3nh4-inicial", "Diretoria")
	require.NoError(t, err)

	require.NotNil(t, repo.created)
	assert.Equal(t, "diretoria@escola.edu.br", repo.created.Email)
	assert.Equal(t, models.RoleAdmin, repo.created.Role)
	assert.True(t, repo.created.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.created.PasswordHash), []byte("s3nh4-inicial")))
}

func TestBootstrapSkipsExistingAccount(t *testing.T) {
	svc, repo := newAuthFixture(t, "s3nh4-forte", true)

	err := svc.Bootstrap(context.Background(), repo.user.Email, "outra-senha", "Ana Souza")
	require.NoError(t, err)
	assert.Nil(t, repo.created)
}

func TestBootstrapDisabledWithoutCredentials(t *testing.T) {
	repo := &mockAuthRepo{findByEmailErr: sql.ErrNoRows}
	svc := NewAuthService(repo, nil, nil, AuthConfig{Secret: "test-secret", Expiration: time.Hour})

	require.NoError(t, svc.Bootstrap(context.Background(), "", "", ""))
	assert.Nil(t, repo.created)
}
