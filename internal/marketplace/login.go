package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gadgetswap/backend/internal/store"
)

const (
	maxFailedLoginAttempts = 3
	loginRestrictionWindow = 10 * time.Minute
)

// RecordFailedLogin stamps a failed authentication attempt. The third
// consecutive failure restricts login for ten minutes from now.
func (s *Service) RecordFailedLogin(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrValidation
	}

	userDoc, err := s.store.FindByKey(ctx, store.CollectionUsers, email)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("login guard: look up user: %w", err)
	}

	now := s.clock()
	return s.store.Mutate(ctx, store.CollectionUsers, userDoc.ID, func(body map[string]interface{}) error {
		if err := store.AddToField(body, "failedLoginAttempts", 1); err != nil {
			return err
		}
		if err := store.SetField(body, "lastFailedLoginAttempt", float64(now.Unix())); err != nil {
			return err
		}
		attempts, _ := store.GetField(body, "failedLoginAttempts")
		count, _ := attempts.(float64)
		if int(count) < maxFailedLoginAttempts {
			return nil
		}
		if err := store.SetField(body, "loginRestricted", true); err != nil {
			return err
		}
		return store.SetField(body, "loginRestrictedUntil", float64(now.Add(loginRestrictionWindow).Unix()))
	})
}

// GetUserForLogin resolves a user for an authentication attempt. While the
// restriction window is open the lookup is refused with ErrLoginRestricted.
// Once the window has passed, a successful lookup clears the guard fields and
// the login proceeds. Any successful lookup also resets the consecutive
// failure counter.
func (s *Service) GetUserForLogin(ctx context.Context, email string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, ErrValidation
	}

	userDoc, err := s.store.FindByKey(ctx, store.CollectionUsers, email)
	if errors.Is(err, store.ErrNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("login guard: look up user: %w", err)
	}

	var user User
	if err := store.DecodeBody(userDoc, &user); err != nil {
		return User{}, fmt.Errorf("login guard: decode user: %w", err)
	}

	now := s.clock()
	if user.LoginRestricted && user.LoginRestrictedUntil != nil && now.Unix() < *user.LoginRestrictedUntil {
		return User{}, ErrLoginRestricted
	}

	if user.LoginRestricted || user.FailedLoginAttempts > 0 {
		err = s.store.Mutate(ctx, store.CollectionUsers, userDoc.ID, func(body map[string]interface{}) error {
			if err := store.SetField(body, "failedLoginAttempts", float64(0)); err != nil {
				return err
			}
			if err := store.SetField(body, "lastFailedLoginAttempt", float64(0)); err != nil {
				return err
			}
			if err := store.SetField(body, "loginRestricted", false); err != nil {
				return err
			}
			return store.SetField(body, "loginRestrictedUntil", nil)
		})
		if err != nil {
			return User{}, fmt.Errorf("login guard: clear restriction: %w", err)
		}
		user.FailedLoginAttempts = 0
		user.LastFailedLoginAttempt = 0
		user.LoginRestricted = false
		user.LoginRestrictedUntil = nil
	}

	return user, nil
}
