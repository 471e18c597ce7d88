package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/campus-booking/internal/testfixtures"
)

func seedAuthService(t *testing.T, clock *testfixtures.Clock) (*AuthService, *testfixtures.MemStore) {
	t.Helper()
	store := testfixtures.NewMemStore()

	hash, err := CreatePasswordHash("correct horse battery", DefaultArgon2idParams)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	account := testfixtures.NewAccountFixture(
		testfixtures.WithAccountID("owner-1"),
		testfixtures.WithAccountEmail("owner@campus.example"),
		testfixtures.WithPasswordHash(hash),
	)
	if err := store.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	service := NewAuthService(store, nil, "test-secret", time.Hour, clock.NowFunc(), nil)
	return service, store
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	service, _ := seedAuthService(t, clock)
	ctx := context.Background()

	t.Run("valid credentials issue a token", func(t *testing.T) {
		t.Parallel()
		result, err := service.Authenticate(ctx, AuthenticateParams{
			Email:    "Owner@Campus.Example",
			Password: "correct horse battery",
		})
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if result.Token == "" {
			t.Fatal("expected a signed token")
		}
		if result.Account.ID != "owner-1" {
			t.Errorf("account = %s, want owner-1", result.Account.ID)
		}
		if !result.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
			t.Errorf("expiry = %v, want an hour out", result.ExpiresAt)
		}
	})

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "owner@campus.example", "nope"},
		{"unknown email", "stranger@campus.example", "correct horse battery"},
		{"empty email", "", "correct horse battery"},
		{"empty password", "owner@campus.example", ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := service.Authenticate(ctx, AuthenticateParams{Email: tc.email, Password: tc.password})
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	service, store := seedAuthService(t, clock)
	ctx := context.Background()

	result, err := service.Authenticate(ctx, AuthenticateParams{
		Email:    "owner@campus.example",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	t.Run("fresh token resolves its principal", func(t *testing.T) {
		principal, err := service.ValidateToken(ctx, result.Token)
		if err != nil {
			t.Fatalf("ValidateToken failed: %v", err)
		}
		if principal.AccountID != "owner-1" || principal.IsAdmin {
			t.Fatalf("unexpected principal %+v", principal)
		}
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		if _, err := service.ValidateToken(ctx, "not.a.token"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("token signed with another secret is rejected", func(t *testing.T) {
		other := NewAuthService(store, nil, "other-secret", time.Hour, clock.NowFunc(), nil)
		foreign, err := other.Authenticate(ctx, AuthenticateParams{
			Email:    "owner@campus.example",
			Password: "correct horse battery",
		})
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if _, err := service.ValidateToken(ctx, foreign.Token); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		defer clock.Set(testfixtures.ReferenceTime())
		if _, err := service.ValidateToken(ctx, result.Token); !errors.Is(err, ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
	})
}

func TestPasswordHashRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := CreatePasswordHash("a long enough secret", DefaultArgon2idParams)
	if err != nil {
		t.Fatalf("CreatePasswordHash failed: %v", err)
	}
	if err := VerifyPassword(hash, "a long enough secret"); err != nil {
		t.Fatalf("VerifyPassword rejected the original password: %v", err)
	}
	if err := VerifyPassword(hash, "a wrong secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := VerifyPassword("$bcrypt$nope", "anything"); !errors.Is(err, ErrInvalidPasswordHash) {
		t.Fatalf("expected ErrInvalidPasswordHash, got %v", err)
	}
}
