package sqlite

import (
	"context"

	"github.com/example/campus-booking/internal/persistence"
)

// AccountRepository implements persistence.AccountRepository using SQLite.
// Email uniqueness is enforced case-insensitively by the schema.
type AccountRepository struct {
	pool *ConnectionPool
}

// NewAccountRepository creates a new SQLite account repository.
func NewAccountRepository(pool *ConnectionPool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = "id, email, display_name, password_hash, is_admin, created_at, updated_at"

// CreateAccount inserts a new account.
func (r *AccountRepository) CreateAccount(ctx context.Context, account persistence.Account) error {
	if account.ID == "" || account.Email == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		account.ID,
		account.Email,
		account.DisplayName,
		account.PasswordHash,
		boolToInt(account.IsAdmin),
		formatTime(account.CreatedAt),
		formatTime(account.UpdatedAt),
	)
	return mapError(err)
}

// UpdateAccount updates an existing account.
func (r *AccountRepository) UpdateAccount(ctx context.Context, account persistence.Account) error {
	if account.ID == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE accounts
		SET email = ?, display_name = ?, password_hash = ?, is_admin = ?, updated_at = ?
		WHERE id = ?
	`,
		account.Email,
		account.DisplayName,
		account.PasswordHash,
		boolToInt(account.IsAdmin),
		formatTime(account.UpdatedAt),
		account.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

// GetAccount retrieves an account by ID.
func (r *AccountRepository) GetAccount(ctx context.Context, id string) (persistence.Account, error) {
	if id == "" {
		return persistence.Account{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	return scanAccount(row)
}

// GetAccountByEmail retrieves an account by email, case-insensitively.
func (r *AccountRepository) GetAccountByEmail(ctx context.Context, email string) (persistence.Account, error) {
	if email == "" {
		return persistence.Account{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = ? COLLATE NOCASE", email)
	return scanAccount(row)
}

// ListAccounts returns all accounts ordered by creation time then ID.
func (r *AccountRepository) ListAccounts(ctx context.Context) ([]persistence.Account, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var accounts []persistence.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return accounts, nil
}

func scanAccount(row rowScanner) (persistence.Account, error) {
	var account persistence.Account
	var isAdmin int
	var createdAt, updatedAt string

	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.PasswordHash,
		&isAdmin,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Account{}, mapError(err)
	}

	account.IsAdmin = isAdmin != 0
	if account.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Account{}, err
	}
	if account.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Account{}, err
	}
	return account, nil
}
