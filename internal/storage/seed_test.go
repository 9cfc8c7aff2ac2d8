package storage

import (
	"context"
	"testing"

	"github.com/ARPaule28/omnichannel/internal/directory"
)

func TestSeedDemoUsersOnEmptyDirectory(t *testing.T) {
	users := directory.NewService(directory.NewMemoryRepo())
	demo := []DemoUser{
		{Username: "user1", Email: "user1@example.com", Phone: "+15550001111", Password: "pass-one"},
		{Username: "user2", Email: "user2@example.com", Phone: "+15550002222", Password: "pass-two"},
	}

	if err := SeedDemoUsers(context.Background(), users, demo); err != nil {
		t.Fatalf("seed: %v", err)
	}

	list, err := users.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d users, want 2", len(list))
	}

	if _, err := users.Authenticate(context.Background(), "user1", "pass-one"); err != nil {
		t.Errorf("seeded credentials rejected: %v", err)
	}
}

func TestSeedDemoUsersSkipsNonEmptyDirectory(t *testing.T) {
	users := directory.NewService(directory.NewMemoryRepo())
	if _, err := users.Create(context.Background(), "existing", "e@example.com", "+15559990000", "pw-exists"); err != nil {
		t.Fatalf("create: %v", err)
	}

	demo := []DemoUser{{Username: "user1", Email: "user1@example.com", Phone: "+15550001111", Password: "pass-one"}}
	if err := SeedDemoUsers(context.Background(), users, demo); err != nil {
		t.Fatalf("seed: %v", err)
	}

	list, _ := users.List(context.Background())
	if len(list) != 1 {
		t.Fatalf("seed should not run on populated directory, got %d users", len(list))
	}
}
