package storage

import (
	"context"
	"fmt"

	"github.com/ARPaule28/omnichannel/internal/directory"
	"github.com/ARPaule28/omnichannel/pkg/logger"
)

// DemoUser is one account created on first boot of an empty database.
type DemoUser struct {
	Username string
	Email    string
	Phone    string
	Password string
}

// SeedDemoUsers creates the given accounts when the directory is empty.
// A non-empty directory is left untouched.
func SeedDemoUsers(ctx context.Context, users *directory.Service, demo []DemoUser) error {
	existing, err := users.List(ctx)
	if err != nil {
		return fmt.Errorf("storage: seed: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	for _, d := range demo {
		u, err := users.Create(ctx, d.Username, d.Email, d.Phone, d.Password)
		if err != nil {
			return fmt.Errorf("storage: seed %s: %w", d.Username, err)
		}
		logger.From(ctx).Info("seeded demo user", "user_id", u.ID, "username", u.Username)
	}
	return nil
}
