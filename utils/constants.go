package utils

import (
	"time"
)

// Token constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is AccessTokenTTL in seconds
	AccessTokenTTLSeconds = 86400

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Pagination defaults
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Redis key suffixes, always combined with the configured prefix
const (
	AccountRoleLockKey  = "account:role:%d"
	CaptchaChallengeKey = "captcha:%s"
	RevokedTokenKey     = "token:revoked:%s"
	AccountRoleLockTTL  = 10 * time.Second
)

// DefaultRequestTimeout bounds a request context when the config does not set one
const DefaultRequestTimeout = 30 * time.Second

// Lead list date filters
const DateFilterLayout = "2006-01-02"

// Lead export
const (
	LeadExportSheetName = "leads"
	LeadExportMaxRows   = 10000
)
