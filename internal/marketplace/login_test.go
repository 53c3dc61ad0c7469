package marketplace

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestThirdFailedLoginRestrictsForTenMinutes(t *testing.T) {
	docStore := openTestStore(t)
	now := time.Unix(1700000000, 0).UTC()
	service := newTestService(t, docStore, func() time.Time { return now })
	ctx := context.Background()

	seedUser(t, service, "victim@example.com")

	for attempt := 0; attempt < 3; attempt++ {
		if err := service.RecordFailedLogin(ctx, "victim@example.com"); err != nil {
			t.Fatalf("attempt %d failed: %v", attempt+1, err)
		}
	}

	user := loadUser(t, docStore, "victim@example.com")
	if user.FailedLoginAttempts != 3 {
		t.Fatalf("expected three recorded attempts, got %d", user.FailedLoginAttempts)
	}
	if !user.LoginRestricted {
		t.Fatalf("expected login to be restricted")
	}
	if user.LoginRestrictedUntil == nil || *user.LoginRestrictedUntil != now.Add(10*time.Minute).Unix() {
		t.Fatalf("expected restriction until now+10m, got %v", user.LoginRestrictedUntil)
	}
}

func TestTwoFailuresDoNotRestrict(t *testing.T) {
	docStore := openTestStore(t)
	service := newTestService(t, docStore, nil)
	ctx := context.Background()

	seedUser(t, service, "victim@example.com")
	for attempt := 0; attempt < 2; attempt++ {
		if err := service.RecordFailedLogin(ctx, "victim@example.com"); err != nil {
			t.Fatalf("attempt failed: %v", err)
		}
	}

	user := loadUser(t, docStore, "victim@example.com")
	if user.LoginRestricted {
		t.Fatalf("expected no restriction after two failures")
	}
}

func TestLoginRefusedWhileRestrictionWindowOpen(t *testing.T) {
	docStore := openTestStore(t)
	now := time.Unix(1700000000, 0).UTC()
	service := newTestService(t, docStore, func() time.Time { return now })
	ctx := context.Background()

	seedUser(t, service, "victim@example.com")
	for attempt := 0; attempt < 3; attempt++ {
		if err := service.RecordFailedLogin(ctx, "victim@example.com"); err != nil {
			t.Fatalf("attempt failed: %v", err)
		}
	}

	_, err := service.GetUserForLogin(ctx, "victim@example.com")
	if !errors.Is(err, ErrLoginRestricted) {
		t.Fatalf("expected login restricted, got %v", err)
	}
}

func TestLoginAfterWindowClearsGuardFields(t *testing.T) {
	docStore := openTestStore(t)
	now := time.Unix(1700000000, 0).UTC()
	service := newTestService(t, docStore, func() time.Time { return now })
	ctx := context.Background()

	seedUser(t, service, "victim@example.com")
	for attempt := 0; attempt < 3; attempt++ {
		if err := service.RecordFailedLogin(ctx, "victim@example.com"); err != nil {
			t.Fatalf("attempt failed: %v", err)
		}
	}

	now = now.Add(11 * time.Minute)
	user, err := service.GetUserForLogin(ctx, "victim@example.com")
	if err != nil {
		t.Fatalf("expected login to proceed after window, got %v", err)
	}
	if user.FailedLoginAttempts != 0 || user.LastFailedLoginAttempt != 0 ||
		user.LoginRestricted || user.LoginRestrictedUntil != nil {
		t.Fatalf("expected guard fields cleared, got %+v", user)
	}

	stored := loadUser(t, docStore, "victim@example.com")
	if stored.FailedLoginAttempts != 0 || stored.LoginRestricted || stored.LoginRestrictedUntil != nil {
		t.Fatalf("expected guard fields cleared in store, got %+v", stored)
	}
}

func TestSuccessfulLoginResetsConsecutiveCounter(t *testing.T) {
	docStore := openTestStore(t)
	service := newTestService(t, docStore, nil)
	ctx := context.Background()

	seedUser(t, service, "victim@example.com")
	if err := service.RecordFailedLogin(ctx, "victim@example.com"); err != nil {
		t.Fatalf("attempt failed: %v", err)
	}

	if _, err := service.GetUserForLogin(ctx, "victim@example.com"); err != nil {
		t.Fatalf("login lookup failed: %v", err)
	}

	user := loadUser(t, docStore, "victim@example.com")
	if user.FailedLoginAttempts != 0 {
		t.Fatalf("expected counter reset on success, got %d", user.FailedLoginAttempts)
	}
}

func TestRecordFailedLoginUnknownUser(t *testing.T) {
	service := newTestService(t, openTestStore(t), nil)

	err := service.RecordFailedLogin(context.Background(), "ghost@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}
