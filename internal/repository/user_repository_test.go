package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
)

var repoNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, repo UserRepository, email string, mutate func(*domain.User)) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, Name: "Test", PasswordHash: "hash", CreatedAt: repoNow}
	if mutate != nil {
		mutate(u)
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func TestUserRepositoryCreateCanonicalizesAndRejectsDuplicates(t *testing.T) {
	repo := NewUserRepository(newRepositoryDBForTest(t))
	ctx := context.Background()

	u := seedUser(t, repo, "  JDoe@Example.com ", nil)
	if u.ID == "" {
		t.Fatal("expected generated id")
	}
	if u.Role != domain.RoleUser {
		t.Fatalf("expected default role user, got %q", u.Role)
	}

	found, err := repo.FindByEmail(ctx, "jdoe@EXAMPLE.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if found.ID != u.ID || found.Email != "jdoe@example.com" {
		t.Fatalf("unexpected user: %+v", found)
	}

	err = repo.Create(ctx, &domain.User{Email: "JDOE@example.com", Name: "Dup", PasswordHash: "hash"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	if _, err := repo.FindByEmail(ctx, "missing@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.FindByID(ctx, "nope"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound by id, got %v", err)
	}
}

func TestUserRepositoryRecordLoginFailureLocksAtThreshold(t *testing.T) {
	repo := NewUserRepository(newRepositoryDBForTest(t))
	ctx := context.Background()
	u := seedUser(t, repo, "lock@example.com", nil)

	for i := 1; i <= 3; i++ {
		out, err := repo.RecordLoginFailure(ctx, u.ID, 3, 30*time.Minute, repoNow)
		if err != nil {
			t.Fatalf("record failure %d: %v", i, err)
		}
		if out.Attempts != i {
			t.Fatalf("attempt %d: expected counter %d, got %d", i, i, out.Attempts)
		}
		if i < 3 && out.LockedUntil != nil {
			t.Fatalf("attempt %d: expected no lock, got %v", i, out.LockedUntil)
		}
		if i == 3 && (out.LockedUntil == nil || !out.LockedUntil.Equal(repoNow.Add(30*time.Minute))) {
			t.Fatalf("expected lock at threshold, got %v", out.LockedUntil)
		}
	}

	out, err := repo.RecordLoginFailure(ctx, u.ID, 3, 30*time.Minute, repoNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("record failure while locked: %v", err)
	}
	if !out.AlreadyLocked || out.Attempts != 3 {
		t.Fatalf("expected already locked with unchanged counter, got %+v", out)
	}

	stored, err := repo.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.FailedLoginAttempts != 3 || stored.LockedUntil == nil {
		t.Fatalf("unexpected stored state: %+v", stored)
	}

	success, err := repo.RecordLoginSuccess(ctx, u.ID, "10.0.0.1", repoNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("record success while locked: %v", err)
	}
	if !success.AlreadyLocked {
		t.Fatal("expected success bookkeeping to refuse a locked row")
	}
}

func TestUserRepositoryRecordLoginSuccessResetsState(t *testing.T) {
	repo := NewUserRepository(newRepositoryDBForTest(t))
	ctx := context.Background()
	expired := repoNow.Add(-time.Minute)
	u := seedUser(t, repo, "reset@example.com", func(u *domain.User) {
		u.FailedLoginAttempts = 4
		u.LockedUntil = &expired
	})

	out, err := repo.RecordLoginSuccess(ctx, u.ID, "192.0.2.10", repoNow)
	if err != nil {
		t.Fatalf("record success: %v", err)
	}
	if out.AlreadyLocked {
		t.Fatal("expired lock should not block success")
	}
	stored, err := repo.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("expected counters cleared, got %+v", stored)
	}
	if stored.LastLoginAt == nil || !stored.LastLoginAt.Equal(repoNow) || stored.LastLoginIP != "192.0.2.10" {
		t.Fatalf("expected last login recorded, got %+v", stored)
	}
}

func TestUserRepositoryConcurrentFailuresNeverExceedThreshold(t *testing.T) {
	repo := NewUserRepository(newRepositoryDBForTest(t))
	u := seedUser(t, repo, "race@example.com", nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	lockedNow := 0
	alreadyLocked := 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := repo.RecordLoginFailure(context.Background(), u.ID, 5, 30*time.Minute, repoNow)
			if err != nil {
				t.Errorf("record failure: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if out.AlreadyLocked {
				alreadyLocked++
			} else if out.LockedUntil != nil {
				lockedNow++
			}
		}()
	}
	wg.Wait()

	stored, err := repo.FindByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.FailedLoginAttempts != 5 {
		t.Fatalf("expected counter capped at threshold, got %d", stored.FailedLoginAttempts)
	}
	if lockedNow != 1 || alreadyLocked != 7 {
		t.Fatalf("expected one locking attempt and seven blocked, got locked=%d blocked=%d", lockedNow, alreadyLocked)
	}
}

func TestUserRepositoryVerificationIsSingleUse(t *testing.T) {
	repo := NewUserRepository(newRepositoryDBForTest(t))
	ctx := context.Background()
	hash := "abc123"
	expires := repoNow.Add(24 * time.Hour)
	u := seedUser(t, repo, "verify@example.com", func(u *domain.User) {
		u.VerificationTokenHash = &hash
		u.VerificationExpiresAt = &expires
	})

	if _, err := repo.FindPendingVerification(ctx, "verify@example.com", "wrong", repoNow); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("expected not found for wrong token, got %v", err)
	}
	if _, err := repo.FindPendingVerification(ctx, "verify@example.com", hash, expires.Add(time.Second)); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("expected not found for expired token, got %v", err)
	}

	found, err := repo.FindPendingVerification(ctx, "VERIFY@example.com", hash, repoNow)
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	if found.ID != u.ID {
		t.Fatalf("unexpected user %s", found.ID)
	}
	if err := repo.MarkEmailVerified(ctx, u.ID, hash, repoNow); err != nil {
		t.Fatalf("mark verified: %v", err)
	}
	if err := repo.MarkEmailVerified(ctx, u.ID, hash, repoNow); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("expected replay to fail, got %v", err)
	}
	stored, err := repo.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.EmailVerifiedAt == nil || stored.VerificationTokenHash != nil || stored.VerificationExpiresAt != nil {
		t.Fatalf("expected verified with token cleared, got %+v", stored)
	}
	if _, err := repo.FindPendingVerification(ctx, "verify@example.com", hash, repoNow); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("expected consumed token lookup to fail, got %v", err)
	}
}

func TestUserRepositoryListRoleUnlockDelete(t *testing.T) {
	repo := NewUserRepository(newRepositoryDBForTest(t))
	ctx := context.Background()
	var created []*domain.User
	for i := 0; i < 3; i++ {
		createdAt := repoNow.Add(time.Duration(i) * time.Minute)
		created = append(created, seedUser(t, repo, fmt.Sprintf("u%d@example.com", i), func(u *domain.User) {
			u.CreatedAt = createdAt
		}))
	}

	page, err := repo.ListPaged(ctx, PageRequest{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list paged: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Items[0].ID != created[2].ID {
		t.Fatalf("expected newest first, got %s", page.Items[0].Email)
	}

	// Pin updated_at in the past so the admin mutations below must move it.
	if _, err := repo.RecordLoginFailure(ctx, created[0].ID, 5, time.Hour, repoNow); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if err := repo.SetRole(ctx, created[0].ID, domain.RoleAdmin); err != nil {
		t.Fatalf("set role: %v", err)
	}
	promoted, _ := repo.FindByID(ctx, created[0].ID)
	if promoted.Role != domain.RoleAdmin || !promoted.UpdatedAt.After(repoNow) {
		t.Fatalf("expected role change to bump updated_at, got %+v", promoted)
	}
	if err := repo.SetRole(ctx, "missing", domain.RoleAdmin); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if _, err := repo.RecordLoginFailure(ctx, created[1].ID, 1, time.Hour, repoNow); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := repo.ClearLockout(ctx, created[1].ID); err != nil {
		t.Fatalf("clear lockout: %v", err)
	}
	unlocked, _ := repo.FindByID(ctx, created[1].ID)
	if unlocked.LockedUntil != nil || unlocked.FailedLoginAttempts != 0 {
		t.Fatalf("expected unlocked user, got %+v", unlocked)
	}
	if !unlocked.UpdatedAt.After(repoNow) {
		t.Fatalf("expected unlock to bump updated_at, got %v", unlocked.UpdatedAt)
	}

	if err := repo.DeleteByID(ctx, created[2].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteByID(ctx, created[2].ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on second delete, got %v", err)
	}
}
