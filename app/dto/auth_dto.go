package dto

// RegisterAccountRequest creates an account; at most one role flag may be set
type RegisterAccountRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=150,username_chars" example:"jane"`
	Email       string `json:"email" validate:"required,email,max=255" example:"jane@example.com"`
	Password    string `json:"password" validate:"required,min=8,max=100,password_strength" example:"SecurePass123!"`
	FirstName   string `json:"first_name" validate:"omitempty,max=150" example:"Jane"`
	LastName    string `json:"last_name" validate:"omitempty,max=150" example:"Doe"`
	IsOrganizer bool   `json:"is_organizer" example:"true"`
	IsAgent     bool   `json:"is_agent" example:"false"`
}

// UpdateMeRequest serves both PUT and PATCH on /auth/users/me; nil fields are left untouched
type UpdateMeRequest struct {
	Email       *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	FirstName   *string `json:"first_name,omitempty" validate:"omitempty,max=150"`
	LastName    *string `json:"last_name,omitempty" validate:"omitempty,max=150"`
	IsOrganizer *bool   `json:"is_organizer,omitempty"`
	IsAgent     *bool   `json:"is_agent,omitempty"`
}

// DeleteMeRequest confirms self deletion with the current password
type DeleteMeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
}

// AccountDTO is the wire form of an account
type AccountDTO struct {
	ID               uint    `json:"id" example:"12"`
	UUID             string  `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Username         string  `json:"username" example:"jane"`
	Email            string  `json:"email" example:"jane@example.com"`
	FirstName        string  `json:"first_name" example:"Jane"`
	LastName         string  `json:"last_name" example:"Doe"`
	IsStaff          bool    `json:"is_staff" example:"false"`
	IsOrganizer      bool    `json:"is_organizer" example:"true"`
	IsAgent          bool    `json:"is_agent" example:"false"`
	Role             string  `json:"role" example:"organizer"`
	IsActive         bool    `json:"is_active" example:"true"`
	OrganizerProfile *uint   `json:"organizer_profile,omitempty" example:"4"`
	AgentProfile     *uint   `json:"agent_profile,omitempty"`
	CreatedAt        string  `json:"created_at" example:"2024-01-15T10:30:00Z"`
	LastLoginAt      *string `json:"last_login_at,omitempty"`
}

// LoginRequest is the JWT create payload. Captcha fields are required when captcha is enabled.
// CaptchaAngle is the rotation the user applied to the thumb to make it upright,
// which is 360 minus the challenge angle (within the configured padding).
type LoginRequest struct {
	Username     string   `json:"username" validate:"required,max=150" example:"jane"`
	Password     string   `json:"password" validate:"required,max=100" example:"SecurePass123!"`
	CaptchaID    string   `json:"captcha_id" validate:"omitempty,uuid" example:"8d1c0f3e-2a5b-4c7d-9e1f-3a4b5c6d7e8f"`
	CaptchaAngle *float64 `json:"captcha_angle,omitempty" validate:"omitempty,min=0,max=360" example:"240"`
}

// TokenPairResponse carries an access/refresh token pair
type TokenPairResponse struct {
	Access    string `json:"access" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	Refresh   string `json:"refresh" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType string `json:"token_type" example:"Bearer"`
	ExpiresIn int    `json:"expires_in" example:"86400"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair
type RefreshTokenRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// VerifyTokenRequest checks a token without using it
type VerifyTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// CaptchaInitResponse is the rotate captcha challenge sent to login forms
type CaptchaInitResponse struct {
	ChallengeID       string `json:"challenge_id"`
	MasterImageBase64 string `json:"master_image_base64"`
	ThumbImageBase64  string `json:"thumb_image_base64"`
}
