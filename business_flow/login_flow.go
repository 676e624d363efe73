package businessflow

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/amirphl/simple-crm/app/dto"
	"github.com/amirphl/simple-crm/app/services"
	"github.com/amirphl/simple-crm/models"
	"github.com/amirphl/simple-crm/repository"
	"github.com/amirphl/simple-crm/utils"
	"golang.org/x/crypto/bcrypt"
)

// LoginFlow issues, refreshes and verifies JWTs
type LoginFlow interface {
	InitCaptcha(ctx context.Context) (*dto.CaptchaInitResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.TokenPairResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenPairResponse, error)
	Verify(ctx context.Context, req *dto.VerifyTokenRequest) error
}

// LoginFlowImpl implements the login business flow
type LoginFlowImpl struct {
	accountRepo  repository.AccountRepository
	auditRepo    repository.AuditLogRepository
	tokenService services.TokenService
	captchaSvc   services.CaptchaService
}

// NewLoginFlow creates a new login flow instance. A nil captcha service disables the captcha check.
func NewLoginFlow(
	accountRepo repository.AccountRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	captchaSvc services.CaptchaService,
) LoginFlow {
	return &LoginFlowImpl{
		accountRepo:  accountRepo,
		auditRepo:    auditRepo,
		tokenService: tokenService,
		captchaSvc:   captchaSvc,
	}
}

// InitCaptcha creates a rotate captcha challenge for the login form
func (lf *LoginFlowImpl) InitCaptcha(ctx context.Context) (*dto.CaptchaInitResponse, error) {
	if lf.captchaSvc == nil {
		return nil, NewBusinessError("CAPTCHA_DISABLED", "Captcha is disabled", ErrInvalidCaptcha)
	}

	challenge, err := lf.captchaSvc.GenerateRotate(ctx)
	if err != nil {
		return nil, NewBusinessError("CAPTCHA_GENERATION_FAILED", "Failed to generate captcha", err)
	}

	return &dto.CaptchaInitResponse{
		ChallengeID:       challenge.ID,
		MasterImageBase64: challenge.MasterImageBase64,
		ThumbImageBase64:  challenge.ThumbImageBase64,
	}, nil
}

// Login authenticates by username and password and returns a token pair
func (lf *LoginFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.TokenPairResponse, error) {
	if lf.captchaSvc != nil {
		if req.CaptchaID == "" || req.CaptchaAngle == nil || !lf.captchaSvc.VerifyRotate(ctx, req.CaptchaID, *req.CaptchaAngle) {
			return nil, NewBusinessError("LOGIN_FAILED", "Login failed", ErrInvalidCaptcha)
		}
	}

	account, err := lf.authenticate(ctx, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		errMsg := fmt.Sprintf("Login failed for %s: %s", req.Username, err.Error())
		createAuditLog(ctx, lf.auditRepo, account, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	access, refresh, err := lf.tokenService.GenerateTokens(account.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	if err := lf.accountRepo.UpdateLastLogin(ctx, account.ID, utils.UTCNow()); err != nil {
		log.Printf("Failed to update last login for account %d: %v", account.ID, err)
	}

	createAuditLog(ctx, lf.auditRepo, account, models.AuditActionLoginSuccess, fmt.Sprintf("Account logged in: %d", account.ID), true, nil, metadata)

	return lf.tokenPair(access, refresh), nil
}

// Refresh rotates a refresh token
func (lf *LoginFlowImpl) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenPairResponse, error) {
	claims, err := lf.tokenService.ValidateToken(req.Refresh)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Refresh failed", fmt.Errorf("%w: %v", ErrInvalidTokenFormat, err))
	}

	account, err := lf.accountRepo.ByID(ctx, claims.AccountID)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Refresh failed", err)
	}
	if account == nil || !utils.IsTrue(account.IsActive) {
		return nil, NewBusinessError("REFRESH_FAILED", "Refresh failed", ErrAccountInactive)
	}

	access, refresh, err := lf.tokenService.RefreshToken(req.Refresh)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Refresh failed", fmt.Errorf("%w: %v", ErrInvalidTokenFormat, err))
	}

	return lf.tokenPair(access, refresh), nil
}

// Verify checks that a token is well formed, unexpired and not revoked
func (lf *LoginFlowImpl) Verify(ctx context.Context, req *dto.VerifyTokenRequest) error {
	if _, err := lf.tokenService.ValidateToken(req.Token); err != nil {
		return NewBusinessError("TOKEN_INVALID", "Token is invalid or expired", fmt.Errorf("%w: %v", ErrInvalidTokenFormat, err))
	}
	return nil
}

// authenticate returns the account when credentials match. The account is returned
// alongside ErrIncorrectPassword so the failure can be audited against it.
func (lf *LoginFlowImpl) authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	account, err := lf.accountRepo.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrIncorrectPassword
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return account, ErrIncorrectPassword
	}

	if !utils.IsTrue(account.IsActive) {
		return account, ErrAccountInactive
	}

	return account, nil
}

func (lf *LoginFlowImpl) tokenPair(access, refresh string) *dto.TokenPairResponse {
	return &dto.TokenPairResponse{
		Access:    access,
		Refresh:   refresh,
		TokenType: "Bearer",
		ExpiresIn: int(lf.tokenService.AccessTokenTTL().Seconds()),
	}
}
