package attachments

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestSaveAndOpen(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	key, err := s.Save(ctx, strings.NewReader("file contents"), "report.pdf")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasSuffix(key, ".pdf") {
		t.Errorf("key = %q, want .pdf suffix", key)
	}

	rc, err := s.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "file contents" {
		t.Errorf("contents = %q", got)
	}
}

func TestSaveGeneratesUniqueKeys(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	k1, err := s.Save(ctx, strings.NewReader("a"), "same.txt")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	k2, err := s.Save(ctx, strings.NewReader("b"), "same.txt")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if k1 == k2 {
		t.Errorf("keys collide: %q", k1)
	}
}

func TestSaveStripsHostilePaths(t *testing.T) {
	s := newStore(t)
	key, err := s.Save(context.Background(), strings.NewReader("x"), "../../etc/passwd")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if strings.Contains(key, "/") || strings.Contains(key, "..") {
		t.Errorf("key = %q leaks path parts", key)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	s := newStore(t)
	for _, key := range []string{"", "../secret", "a/b", `a\b`, ".hidden"} {
		if _, err := s.Open(context.Background(), key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Open(%q) err = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestOpenMissingKey(t *testing.T) {
	s := newStore(t)
	_, err := s.Open(context.Background(), "no-such-key.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRemove(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	key, err := s.Save(ctx, strings.NewReader("x"), "a.txt")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Remove(ctx, key); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Open(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open after Remove err = %v, want ErrNotFound", err)
	}

	// Removing again is a no-op.
	if err := s.Remove(ctx, key); err != nil {
		t.Errorf("repeat remove: %v", err)
	}

	if err := s.Remove(ctx, "../secret"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Remove traversal err = %v, want ErrInvalidKey", err)
	}
}

func TestPath(t *testing.T) {
	s := newStore(t)
	key, err := s.Save(context.Background(), strings.NewReader("x"), "a.txt")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	p, err := s.Path(key)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if !strings.HasSuffix(p, key) {
		t.Errorf("path = %q, want suffix %q", p, key)
	}
}
