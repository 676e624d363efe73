package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/simple-crm/app/dto"
	"github.com/amirphl/simple-crm/app/services"
	"github.com/amirphl/simple-crm/models"
	"github.com/amirphl/simple-crm/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCaptchaService struct {
	mock.Mock
}

func (m *mockCaptchaService) GenerateRotate(ctx context.Context) (*services.RotateChallenge, error) {
	args := m.Called(ctx)
	if c := args.Get(0); c != nil {
		return c.(*services.RotateChallenge), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCaptchaService) VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool {
	args := m.Called(ctx, challengeID, userAngle)
	return args.Bool(0)
}

func newTestTokenService(t *testing.T) services.TokenService {
	t.Helper()
	ts, err := services.NewTokenService(time.Hour, 24*time.Hour, "test-issuer", "test-audience", false, "", "", "test-secret-key-that-is-long-enough", nil)
	require.NoError(t, err)
	return ts
}

func TestLoginFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tokens := newTestTokenService(t)
	flow := NewLoginFlow(env.accounts, env.audits, tokens, nil)

	account := env.newAccount(t, "jane", false, true, false)

	t.Run("SuccessfulLogin", func(t *testing.T) {
		out, err := flow.Login(ctx, &dto.LoginRequest{Username: "jane", Password: testPassword}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Bearer", out.TokenType)
		assert.Equal(t, 3600, out.ExpiresIn)

		claims, err := tokens.ValidateToken(out.Access)
		require.NoError(t, err)
		assert.Equal(t, account.ID, claims.AccountID)
		assert.Equal(t, services.TokenTypeAccess, claims.TokenType)

		stored, _ := env.accounts.ByID(ctx, account.ID)
		assert.NotNil(t, stored.LastLoginAt)
	})

	t.Run("IncorrectPassword", func(t *testing.T) {
		_, err := flow.Login(ctx, &dto.LoginRequest{Username: "jane", Password: "WrongPass123!"}, nil)
		assert.True(t, IsIncorrectPassword(err))

		rows, _ := env.audits.ListByAction(ctx, models.AuditActionLoginFailed, 10, 0)
		require.NotEmpty(t, rows)
		require.NotNil(t, rows[len(rows)-1].AccountID)
		assert.Equal(t, account.ID, *rows[len(rows)-1].AccountID)
	})

	t.Run("UnknownUserLooksLikeBadPassword", func(t *testing.T) {
		_, err := flow.Login(ctx, &dto.LoginRequest{Username: "ghost", Password: testPassword}, nil)
		assert.True(t, IsIncorrectPassword(err))
	})

	t.Run("InactiveAccount", func(t *testing.T) {
		sleepy := env.newAccount(t, "sleepy", false, false, false)
		sleepy.IsActive = utils.ToPtr(false)
		require.NoError(t, env.accounts.Update(ctx, sleepy))

		_, err := flow.Login(ctx, &dto.LoginRequest{Username: "sleepy", Password: testPassword}, nil)
		assert.True(t, IsAccountInactive(err))
	})

	t.Run("RefreshRotatesToken", func(t *testing.T) {
		pair, err := flow.Login(ctx, &dto.LoginRequest{Username: "jane", Password: testPassword}, nil)
		require.NoError(t, err)

		rotated, err := flow.Refresh(ctx, &dto.RefreshTokenRequest{Refresh: pair.Refresh})
		require.NoError(t, err)
		assert.NotEqual(t, pair.Refresh, rotated.Refresh)

		_, err = flow.Refresh(ctx, &dto.RefreshTokenRequest{Refresh: pair.Refresh})
		assert.True(t, IsInvalidToken(err))
	})

	t.Run("RefreshRejectsAccessToken", func(t *testing.T) {
		pair, err := flow.Login(ctx, &dto.LoginRequest{Username: "jane", Password: testPassword}, nil)
		require.NoError(t, err)

		_, err = flow.Refresh(ctx, &dto.RefreshTokenRequest{Refresh: pair.Access})
		assert.True(t, IsInvalidToken(err))
	})

	t.Run("Verify", func(t *testing.T) {
		pair, err := flow.Login(ctx, &dto.LoginRequest{Username: "jane", Password: testPassword}, nil)
		require.NoError(t, err)

		assert.NoError(t, flow.Verify(ctx, &dto.VerifyTokenRequest{Token: pair.Access}))
		assert.True(t, IsInvalidToken(flow.Verify(ctx, &dto.VerifyTokenRequest{Token: "not-a-jwt"})))
	})
}

func TestLoginFlow_Captcha(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.newAccount(t, "jane", false, false, true)

	captcha := &mockCaptchaService{}
	flow := NewLoginFlow(env.accounts, env.audits, newTestTokenService(t), captcha)

	t.Run("MissingAnswer", func(t *testing.T) {
		_, err := flow.Login(ctx, &dto.LoginRequest{Username: "jane", Password: testPassword}, nil)
		assert.True(t, IsInvalidCaptcha(err))
	})

	t.Run("WrongAngle", func(t *testing.T) {
		captcha.On("VerifyRotate", mock.Anything, "challenge-1", 10.0).Return(false).Once()
		_, err := flow.Login(ctx, &dto.LoginRequest{Username: "jane", Password: testPassword, CaptchaID: "challenge-1", CaptchaAngle: utils.ToPtr(10.0)}, nil)
		assert.True(t, IsInvalidCaptcha(err))
	})

	t.Run("Solved", func(t *testing.T) {
		captcha.On("VerifyRotate", mock.Anything, "challenge-2", 90.0).Return(true).Once()
		_, err := flow.Login(ctx, &dto.LoginRequest{Username: "jane", Password: testPassword, CaptchaID: "challenge-2", CaptchaAngle: utils.ToPtr(90.0)}, nil)
		assert.NoError(t, err)
	})

	t.Run("InitCaptcha", func(t *testing.T) {
		captcha.On("GenerateRotate", mock.Anything).Return(&services.RotateChallenge{ID: "c", MasterImageBase64: "m", ThumbImageBase64: "t"}, nil).Once()
		out, err := flow.InitCaptcha(ctx)
		require.NoError(t, err)
		assert.Equal(t, "c", out.ChallengeID)
	})

	captcha.AssertExpectations(t)
}
