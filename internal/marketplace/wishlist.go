package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gadgetswap/backend/internal/store"
)

// WishlistUpdate reports a toggle outcome.
type WishlistUpdate struct {
	Wishlist []string
	Added    bool
}

// ToggleWishlist adds the gadget to the user's wishlist when absent and
// removes it when present. The wishlist has set semantics: adding never
// produces a duplicate entry.
func (s *Service) ToggleWishlist(ctx context.Context, userEmail, gadgetID string) (WishlistUpdate, error) {
	userEmail = strings.TrimSpace(userEmail)
	gadgetID = strings.TrimSpace(gadgetID)
	if userEmail == "" || gadgetID == "" {
		return WishlistUpdate{}, ErrValidation
	}

	userDoc, err := s.store.FindByKey(ctx, store.CollectionUsers, userEmail)
	if errors.Is(err, store.ErrNotFound) {
		return WishlistUpdate{}, ErrUserNotFound
	}
	if err != nil {
		return WishlistUpdate{}, fmt.Errorf("wishlist: look up user: %w", err)
	}

	update := WishlistUpdate{}
	err = s.store.Mutate(ctx, store.CollectionUsers, userDoc.ID, func(body map[string]interface{}) error {
		removed, err := store.RemoveFromArray(body, "wishlist", gadgetID)
		if err != nil {
			return err
		}
		if removed == 0 {
			if err := store.AppendToArray(body, "wishlist", gadgetID); err != nil {
				return err
			}
			update.Added = true
		}
		current, _ := store.GetField(body, "wishlist")
		elements, _ := current.([]interface{})
		wishlist := make([]string, 0, len(elements))
		for _, element := range elements {
			if id, ok := element.(string); ok {
				wishlist = append(wishlist, id)
			}
		}
		update.Wishlist = wishlist
		return nil
	})
	if err != nil {
		return WishlistUpdate{}, fmt.Errorf("wishlist: toggle gadget: %w", err)
	}
	return update, nil
}
