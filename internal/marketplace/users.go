package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gadgetswap/backend/internal/store"
)

// EmailRegistered reports whether a user already exists for the email.
func (s *Service) EmailRegistered(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, ErrValidation
	}
	_, err := s.store.FindByKey(ctx, store.CollectionUsers, email)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("users: availability check: %w", err)
	}
	return true, nil
}

// GetUserByEmail returns the stored user record.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, ErrValidation
	}
	userDoc, err := s.store.FindByKey(ctx, store.CollectionUsers, email)
	if errors.Is(err, store.ErrNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("users: look up by email: %w", err)
	}
	var user User
	if err := store.DecodeBody(userDoc, &user); err != nil {
		return User{}, fmt.Errorf("users: decode user: %w", err)
	}
	return user, nil
}

// GetFullUserProfile returns the profile view of a user. Store-internal
// identifiers never appear in the typed record, so nothing sensitive leaks.
func (s *Service) GetFullUserProfile(ctx context.Context, email string) (User, error) {
	return s.GetUserByEmail(ctx, email)
}
