package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/campus-booking/internal/testfixtures"
)

// plainHash keeps account tests fast; argon2id is covered by the auth tests.
func plainHash(password string) (string, error) {
	return "hashed:" + password, nil
}

func newAccountService(t *testing.T) *AccountService {
	t.Helper()
	store := testfixtures.NewMemStore()
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	ids := testfixtures.NewIDGenerator("acct")
	return NewAccountService(store, plainHash, ids.NextFunc(), clock.NowFunc(), nil)
}

func TestCreateAccount(t *testing.T) {
	t.Parallel()

	service := newAccountService(t)
	ctx := context.Background()
	admin := Principal{AccountID: "admin-1", IsAdmin: true}

	t.Run("non-admin is refused", func(t *testing.T) {
		_, err := service.CreateAccount(ctx, CreateAccountParams{
			Principal: Principal{AccountID: "owner-1"},
			Input:     AccountInput{Email: "a@campus.example", DisplayName: "A", Password: "long enough pw"},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("validation failures accumulate", func(t *testing.T) {
		_, err := service.CreateAccount(ctx, CreateAccountParams{
			Principal: admin,
			Input:     AccountInput{Email: "not-an-email", DisplayName: " ", Password: "short"},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected *ValidationError, got %v", err)
		}
		for _, field := range []string{"email", "display_name", "password"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Errorf("missing field %q in %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("email is lowercased and must be unique", func(t *testing.T) {
		created, err := service.CreateAccount(ctx, CreateAccountParams{
			Principal: admin,
			Input:     AccountInput{Email: "Maya@Campus.Example", DisplayName: "Maya", Password: "long enough pw"},
		})
		if err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
		if created.Email != "maya@campus.example" {
			t.Errorf("email = %q, want lowercased", created.Email)
		}

		_, err = service.CreateAccount(ctx, CreateAccountParams{
			Principal: admin,
			Input:     AccountInput{Email: "maya@campus.example", DisplayName: "Other", Password: "long enough pw"},
		})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestUpdateAccount(t *testing.T) {
	t.Parallel()

	service := newAccountService(t)
	ctx := context.Background()
	admin := Principal{AccountID: "admin-1", IsAdmin: true}

	created, err := service.CreateAccount(ctx, CreateAccountParams{
		Principal: admin,
		Input:     AccountInput{Email: "liam@campus.example", DisplayName: "Liam", Password: "long enough pw"},
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	self := Principal{AccountID: created.ID}

	t.Run("stranger cannot update", func(t *testing.T) {
		_, err := service.UpdateAccount(ctx, UpdateAccountParams{
			Principal: Principal{AccountID: "someone-else"},
			AccountID: created.ID,
			Input:     AccountInput{Email: created.Email, DisplayName: "Hacked"},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("owner cannot self-promote", func(t *testing.T) {
		_, err := service.UpdateAccount(ctx, UpdateAccountParams{
			Principal: self,
			AccountID: created.ID,
			Input:     AccountInput{Email: created.Email, DisplayName: "Liam", IsAdmin: true},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected *ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["is_admin"]; !ok {
			t.Fatalf("expected is_admin error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("owner updates profile without password change", func(t *testing.T) {
		updated, err := service.UpdateAccount(ctx, UpdateAccountParams{
			Principal: self,
			AccountID: created.ID,
			Input:     AccountInput{Email: created.Email, DisplayName: "Liam Chen"},
		})
		if err != nil {
			t.Fatalf("UpdateAccount failed: %v", err)
		}
		if updated.DisplayName != "Liam Chen" {
			t.Errorf("display name = %q, want Liam Chen", updated.DisplayName)
		}
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := service.UpdateAccount(ctx, UpdateAccountParams{
			Principal: admin,
			AccountID: "missing",
			Input:     AccountInput{Email: "x@campus.example", DisplayName: "X"},
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
