package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gadgetswap/backend/internal/store"
)

const sagaOnboarding = "onboarding"

// OnboardUser creates a user plus its three satellite chains, each linked
// back to the user document, or guarantees that none of the four persists.
//
// The steps follow a strict sequence: insert user, then insert each chain and
// patch its id onto the user. Any failure after the user insert deletes every
// document created so far in reverse creation order. Duplicate emails are
// rejected both by the pre-check and by the store's unique index, so two
// concurrent onboarding calls for the same email cannot both commit.
func (s *Service) OnboardUser(ctx context.Context, newUser User) (string, error) {
	email := strings.TrimSpace(newUser.Email)
	if email == "" {
		return "", ErrValidation
	}
	newUser.Email = email
	if newUser.Wishlist == nil {
		newUser.Wishlist = []string{}
	}
	if newUser.RentalOrders == nil {
		newUser.RentalOrders = []string{}
	}
	if newUser.Role == "" {
		newUser.Role = string(RoleUser)
	}

	if _, err := s.store.FindByKey(ctx, store.CollectionUsers, email); err == nil {
		return "", ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("onboarding: uniqueness pre-check: %w", err)
	}

	var userID, messageChainID, notificationChainID, activityChainID string

	steps := []sagaStep{
		{
			name: "insert_user",
			do: func(stepCtx context.Context) error {
				id, err := s.store.Insert(stepCtx, store.CollectionUsers, email, newUser)
				if errors.Is(err, store.ErrDuplicateKey) {
					return ErrConflict
				}
				if err != nil {
					return err
				}
				userID = id
				return nil
			},
			undo: func(stepCtx context.Context) error {
				_, err := s.store.DeleteOne(stepCtx, store.CollectionUsers, userID)
				return err
			},
		},
		{
			name: "insert_message_chain",
			do: func(stepCtx context.Context) error {
				id, err := s.store.Insert(stepCtx, store.CollectionMessages, email, MessageChain{
					UserEmail: email,
					Entries:   []Message{},
				})
				if err != nil {
					return err
				}
				messageChainID = id
				return nil
			},
			undo: func(stepCtx context.Context) error {
				_, err := s.store.DeleteOne(stepCtx, store.CollectionMessages, messageChainID)
				return err
			},
		},
		{
			name: "link_message_chain",
			do: func(stepCtx context.Context) error {
				_, err := s.store.UpdateOne(stepCtx, store.CollectionUsers, userID, map[string]interface{}{
					"messageChain_id": messageChainID,
				})
				return err
			},
		},
		{
			name: "insert_notification_chain",
			do: func(stepCtx context.Context) error {
				id, err := s.store.Insert(stepCtx, store.CollectionNotifications, email, NotificationChain{
					UserEmail: email,
					Entries:   []map[string]interface{}{},
				})
				if err != nil {
					return err
				}
				notificationChainID = id
				return nil
			},
			undo: func(stepCtx context.Context) error {
				_, err := s.store.DeleteOne(stepCtx, store.CollectionNotifications, notificationChainID)
				return err
			},
		},
		{
			name: "link_notification_chain",
			do: func(stepCtx context.Context) error {
				_, err := s.store.UpdateOne(stepCtx, store.CollectionUsers, userID, map[string]interface{}{
					"notificationChain_id": notificationChainID,
				})
				return err
			},
		},
		{
			name: "insert_activity_history_chain",
			do: func(stepCtx context.Context) error {
				id, err := s.store.Insert(stepCtx, store.CollectionActivityHistories, email, ActivityHistoryChain{
					UserEmail: email,
					Entries:   []map[string]interface{}{},
				})
				if err != nil {
					return err
				}
				activityChainID = id
				return nil
			},
			undo: func(stepCtx context.Context) error {
				_, err := s.store.DeleteOne(stepCtx, store.CollectionActivityHistories, activityChainID)
				return err
			},
		},
		{
			name: "link_activity_history_chain",
			do: func(stepCtx context.Context) error {
				_, err := s.store.UpdateOne(stepCtx, store.CollectionUsers, userID, map[string]interface{}{
					"activityHistoryChain_id": activityChainID,
				})
				return err
			},
		},
	}

	if err := s.runSaga(ctx, sagaOnboarding, steps); err != nil {
		return "", err
	}
	return userID, nil
}
