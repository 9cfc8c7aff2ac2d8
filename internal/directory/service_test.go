package directory

import (
	"context"
	"errors"
	"testing"
)

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo())

	u, err := svc.Create(ctx, "user1", "user1@example.com", "+1234567890", "password1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	got, err := svc.Authenticate(ctx, "user1", "password1")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("expected user %d, got %d", u.ID, got.ID)
	}

	if _, err := svc.Authenticate(ctx, "user1", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestWeakLookups(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo())

	u, err := svc.Create(ctx, "user2", "user2@example.com", "+1987654321", "password2")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if got, err := svc.ByEmail(ctx, "user2@example.com"); err != nil || got.ID != u.ID {
		t.Fatalf("ByEmail = %v, %v", got, err)
	}
	if got, err := svc.ByPhone(ctx, "+1987654321"); err != nil || got.ID != u.ID {
		t.Fatalf("ByPhone = %v, %v", got, err)
	}
	if _, err := svc.ByPhone(ctx, "+10000000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate_RejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo())

	if _, err := svc.Create(ctx, "user1", "user1@example.com", "+1234567890", "x"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, "user1", "other@example.com", "+15550001111", "x"); err == nil {
		t.Fatalf("expected duplicate username rejection")
	}
}
