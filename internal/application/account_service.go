package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/campus-booking/internal/persistence"
)

const minPasswordLength = 10

// AccountService orchestrates owner account administration. Creating and
// updating accounts is admin-only; owners authenticate through AuthService.
type AccountService struct {
	accounts     persistence.AccountRepository
	hashPassword func(password string) (string, error)
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewAccountService wires dependencies for account administration.
func NewAccountService(accounts persistence.AccountRepository, hashPassword func(string) (string, error), idGenerator func() string, now func() time.Time, logger *slog.Logger) *AccountService {
	if hashPassword == nil {
		hashPassword = func(password string) (string, error) {
			return CreatePasswordHash(password, DefaultArgon2idParams)
		}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AccountService{
		accounts:     accounts,
		hashPassword: hashPassword,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *AccountService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AccountService", operation, attrs...)
}

// CreateAccount registers a new owner account.
func (s *AccountService) CreateAccount(ctx context.Context, params CreateAccountParams) (account Account, err error) {
	if s == nil {
		err = fmt.Errorf("AccountService is nil")
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Input.Email))
	logger := s.loggerWith(ctx, "CreateAccount", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "account creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("account_id", account.ID).InfoContext(ctx, "account created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	validateAccountCore(email, params.Input.DisplayName, vErr)
	if len(params.Input.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	hash, hashErr := s.hashPassword(params.Input.Password)
	if hashErr != nil {
		err = hashErr
		return
	}

	now := s.now().UTC()
	record := persistence.Account{
		ID:           s.idGenerator(),
		Email:        email,
		DisplayName:  strings.TrimSpace(params.Input.DisplayName),
		PasswordHash: hash,
		IsAdmin:      params.Input.IsAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err = s.accounts.CreateAccount(ctx, record); err != nil {
		err = mapAccountRepoError(err)
		return
	}

	account = toAccount(record)
	return
}

// UpdateAccount updates an account's profile. An empty password leaves the
// stored hash untouched.
func (s *AccountService) UpdateAccount(ctx context.Context, params UpdateAccountParams) (account Account, err error) {
	if s == nil {
		err = fmt.Errorf("AccountService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateAccount", "account_id", params.AccountID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "account update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "account updated")
	}()

	if !params.Principal.IsAdmin && params.Principal.AccountID != params.AccountID {
		err = ErrUnauthorized
		return
	}

	existing, getErr := s.accounts.GetAccount(ctx, params.AccountID)
	if getErr != nil {
		err = mapAccountRepoError(getErr)
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Input.Email))
	vErr := &ValidationError{}
	validateAccountCore(email, params.Input.DisplayName, vErr)
	if params.Input.Password != "" && len(params.Input.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	// Only admins may grant or revoke the admin flag.
	if params.Input.IsAdmin != existing.IsAdmin && !params.Principal.IsAdmin {
		vErr.add("is_admin", "only administrators may change the admin flag")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Email = email
	updated.DisplayName = strings.TrimSpace(params.Input.DisplayName)
	updated.IsAdmin = params.Input.IsAdmin
	updated.UpdatedAt = s.now().UTC()
	if params.Input.Password != "" {
		hash, hashErr := s.hashPassword(params.Input.Password)
		if hashErr != nil {
			err = hashErr
			return
		}
		updated.PasswordHash = hash
	}

	if err = s.accounts.UpdateAccount(ctx, updated); err != nil {
		err = mapAccountRepoError(err)
		return
	}

	account = toAccount(updated)
	return
}

// GetAccount returns a single account profile.
func (s *AccountService) GetAccount(ctx context.Context, principal Principal, accountID string) (Account, error) {
	if s == nil {
		return Account{}, fmt.Errorf("AccountService is nil")
	}
	if !principal.IsAdmin && principal.AccountID != accountID {
		return Account{}, ErrUnauthorized
	}
	record, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return Account{}, mapAccountRepoError(err)
	}
	return toAccount(record), nil
}

// ListAccounts enumerates all accounts. Admin-only.
func (s *AccountService) ListAccounts(ctx context.Context, principal Principal) ([]Account, error) {
	if s == nil {
		return nil, fmt.Errorf("AccountService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	records, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(records))
	for _, record := range records {
		out = append(out, toAccount(record))
	}
	return out, nil
}

func validateAccountCore(email, displayName string, vErr *ValidationError) {
	if email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		vErr.add("email", "must be a valid email address")
	}
	if strings.TrimSpace(displayName) == "" {
		vErr.add("display_name", "display name is required")
	}
}

func toAccount(record persistence.Account) Account {
	return Account{
		ID:          record.ID,
		Email:       record.Email,
		DisplayName: record.DisplayName,
		IsAdmin:     record.IsAdmin,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func mapAccountRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	default:
		return err
	}
}
