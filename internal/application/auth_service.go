package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/campus-booking/internal/persistence"
)

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthService authenticates owner accounts and issues bearer tokens. Tokens
// are stateless HS256 JWTs; no session state is stored server-side.
type AuthService struct {
	accounts       persistence.AccountRepository
	verifyPassword PasswordVerifier
	secret         []byte
	tokenTTL       time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(accounts persistence.AccountRepository, verify PasswordVerifier, secret string, tokenTTL time.Duration, now func() time.Time, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		accounts:       accounts,
		verifyPassword: verify,
		secret:         []byte(secret),
		tokenTTL:       tokenTTL,
		now:            now,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues a signed access token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.accounts == nil {
		err = fmt.Errorf("account repository not configured")
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("account_id", result.Account.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	record, lookupErr := s.accounts.GetAccountByEmail(ctx, email)
	if lookupErr != nil {
		if errors.Is(lookupErr, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
			return
		}
		err = lookupErr
		return
	}

	if verifyErr := s.verifyPassword(record.PasswordHash, params.Password); verifyErr != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.tokenTTL)
	claims := jwt.MapClaims{
		"sub":   record.ID,
		"admin": record.IsAdmin,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	}
	token, signErr := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if signErr != nil {
		err = signErr
		return
	}

	result = AuthenticateResult{
		Account:   toAccount(record),
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return
}

// ValidateToken verifies a bearer token and returns the principal it names.
// The account is re-read so a revoked admin flag takes effect immediately.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (Principal, error) {
	if s == nil {
		return Principal{}, fmt.Errorf("AuthService is nil")
	}
	if s.accounts == nil {
		return Principal{}, fmt.Errorf("account repository not configured")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Principal{}, ErrInvalidCredentials
	}

	parsed, err := jwt.Parse(trimmed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, ErrInvalidCredentials
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Principal{}, ErrInvalidCredentials
	}
	accountID, _ := claims["sub"].(string)
	if accountID == "" {
		return Principal{}, ErrInvalidCredentials
	}

	record, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}

	return Principal{AccountID: record.ID, IsAdmin: record.IsAdmin}, nil
}
