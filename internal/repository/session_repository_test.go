package repository

import (
	"context"
	"path/filepath"
	"testing"
)

func newSessionRepo(t *testing.T) *SessionRepository {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "data", "sessions.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewSessionRepository(db)
}

func TestSessionRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newSessionRepo(t)

	userID, err := repo.Load(ctx, 100)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if userID != "" {
		t.Errorf("fresh chat should have no session, got %q", userID)
	}

	if err := repo.Save(ctx, 100, "alice"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if userID, _ = repo.Load(ctx, 100); userID != "alice" {
		t.Errorf("got %q, want alice", userID)
	}

	// Logging in again replaces the stored user for the chat.
	if err := repo.Save(ctx, 100, "bob"); err != nil {
		t.Fatalf("re-save: %v", err)
	}
	if userID, _ = repo.Load(ctx, 100); userID != "bob" {
		t.Errorf("got %q, want bob", userID)
	}

	if err := repo.Clear(ctx, 100); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if userID, _ = repo.Load(ctx, 100); userID != "" {
		t.Errorf("cleared chat still has %q", userID)
	}
	// Clearing an absent session is not an error.
	if err := repo.Clear(ctx, 100); err != nil {
		t.Errorf("clear twice: %v", err)
	}
}

func TestSessionRepositoryRejectsBlankUser(t *testing.T) {
	repo := newSessionRepo(t)
	if err := repo.Save(context.Background(), 100, "   "); err == nil {
		t.Fatal("blank user id must be rejected")
	}
}

func TestSessionRepositoryActive(t *testing.T) {
	ctx := context.Background()
	repo := newSessionRepo(t)

	if err := repo.Save(ctx, 1, "alice"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, 2, "carol"); err != nil {
		t.Fatalf("save: %v", err)
	}

	sessions, err := repo.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("got %d sessions, want 2", len(sessions))
	}
}
