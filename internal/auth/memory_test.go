package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryUsersCaseInsensitive(t *testing.T) {
	store := NewMemoryStore()
	users := store.Users()
	ctx := context.Background()

	u := &User{Email: "Mixed@Case.io", PasswordHash: "h", IsActive: true}
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := users.Create(ctx, &User{Email: "mixed@case.IO", PasswordHash: "h"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	got, err := users.FindByEmail(ctx, "MIXED@case.io")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got.ID != u.ID || got.Email != "mixed@case.io" {
		t.Fatalf("unexpected user: %+v", got)
	}

	got.FullName = "mutated"
	again, _ := users.Find(ctx, u.ID)
	if again.FullName == "mutated" {
		t.Fatal("store must hand out copies")
	}
	if _, err := users.Find(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryLedgerConcurrentBlacklist(t *testing.T) {
	ledger := NewMemoryStore().Revocations()
	entry := RevocationEntry{JTI: "jti-1", UserID: "u", ExpiresAt: time.Now().Add(time.Hour)}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ledger.Blacklist(context.Background(), entry); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, ErrRevoked) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one successful blacklist, got %d", wins)
	}
	ok, _ := ledger.IsBlacklisted(context.Background(), "jti-1")
	if !ok {
		t.Fatal("entry lost")
	}
}

func TestMemorySetActiveAndTokenVersion(t *testing.T) {
	users := NewMemoryStore().Users()
	ctx := context.Background()

	u := &User{Email: "a@x.com", PasswordHash: "h", IsActive: true}
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := users.SetActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := users.UpdatePassword(ctx, u.ID, "h2", time.Now()); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	got, _ := users.Find(ctx, u.ID)
	if got.IsActive || got.TokenVersion != 1 || got.PasswordHash != "h2" {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := users.SetActive(ctx, "ghost", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
