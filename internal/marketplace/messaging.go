package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gadgetswap/backend/internal/store"
)

// AppendMessage appends one message to the user's chain and updates the
// counters in the same single-document write, so entry and counters can never
// diverge.
//
// Counter policy is role based: a message from the user marks everything the
// admin has not seen (unreadByAdmin++) and, by sending, the user has
// implicitly read the chain (unreadByUser reset to zero). An admin message is
// the mirror image. total_count always increments.
func (s *Service) AppendMessage(ctx context.Context, userEmail string, sender Role, content string) (MessageChain, error) {
	userEmail = strings.TrimSpace(userEmail)
	content = strings.TrimSpace(content)
	if userEmail == "" || content == "" {
		return MessageChain{}, ErrValidation
	}

	unlock := s.lockChain(userEmail)
	defer unlock()

	chainDoc, err := s.store.FindByKey(ctx, store.CollectionMessages, userEmail)
	if errors.Is(err, store.ErrNotFound) {
		return MessageChain{}, ErrChainNotFound
	}
	if err != nil {
		return MessageChain{}, fmt.Errorf("messaging: look up chain: %w", err)
	}

	entry := Message{
		Sender:      string(sender),
		Content:     content,
		TimestampMS: s.clock().UnixMilli(),
		ReadByUser:  sender == RoleUser,
		ReadByAdmin: sender == RoleAdmin,
	}

	err = s.store.Mutate(ctx, store.CollectionMessages, chainDoc.ID, func(body map[string]interface{}) error {
		if err := store.AppendToArray(body, "message_chain", entry); err != nil {
			return err
		}
		if err := store.AddToField(body, "total_count", 1); err != nil {
			return err
		}
		if sender == RoleAdmin {
			if err := store.AddToField(body, "unreadByUser_count", 1); err != nil {
				return err
			}
			return store.SetField(body, "unreadByAdmin_count", float64(0))
		}
		if err := store.AddToField(body, "unreadByAdmin_count", 1); err != nil {
			return err
		}
		return store.SetField(body, "unreadByUser_count", float64(0))
	})
	if err != nil {
		return MessageChain{}, fmt.Errorf("messaging: append entry: %w", err)
	}

	return s.loadMessageChain(ctx, userEmail)
}

// GetMessageChain returns the full chain for one user.
func (s *Service) GetMessageChain(ctx context.Context, userEmail string) (MessageChain, error) {
	userEmail = strings.TrimSpace(userEmail)
	if userEmail == "" {
		return MessageChain{}, ErrValidation
	}
	return s.loadMessageChain(ctx, userEmail)
}

func (s *Service) loadMessageChain(ctx context.Context, userEmail string) (MessageChain, error) {
	chainDoc, err := s.store.FindByKey(ctx, store.CollectionMessages, userEmail)
	if errors.Is(err, store.ErrNotFound) {
		return MessageChain{}, ErrChainNotFound
	}
	if err != nil {
		return MessageChain{}, fmt.Errorf("messaging: load chain: %w", err)
	}
	var chain MessageChain
	if err := store.DecodeBody(chainDoc, &chain); err != nil {
		return MessageChain{}, fmt.Errorf("messaging: decode chain: %w", err)
	}
	return chain, nil
}
