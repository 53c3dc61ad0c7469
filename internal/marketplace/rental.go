package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gadgetswap/backend/internal/store"
)

const sagaRentalBooking = "rental_booking"

// BookRentalResult reports the committed order.
type BookRentalResult struct {
	OrderID string
	Order   RentalOrder
}

// BookRental commits a rental order, the renter's aggregate-stat update, and
// the gadget's calendar blocking as one all-or-nothing operation.
//
// Only the last rentalStreak entry's figures are applied to the renter's
// aggregates; earlier entries are historical data, not additional deltas.
// Rollback is symmetric: a failure after the stats update reverses the pushed
// order reference and every increment before the original error is reported.
// Calendar writes are serialized per gadget, so concurrent bookings append
// their blocked dates one at a time.
func (s *Service) BookRental(ctx context.Context, renterEmail string, order RentalOrder) (BookRentalResult, error) {
	renterEmail = strings.TrimSpace(renterEmail)
	if renterEmail == "" || order.GadgetID == "" {
		return BookRentalResult{}, ErrValidation
	}
	order.UserEmail = renterEmail
	if order.Status == "" {
		order.Status = "active"
	}
	if order.RentalStreak == nil {
		order.RentalStreak = []StreakEntry{}
	}
	if order.BlockedDates == nil {
		order.BlockedDates = []string{}
	}
	order.CreatedAtMS = s.clock().UnixMilli()

	userDoc, err := s.store.FindByKey(ctx, store.CollectionUsers, renterEmail)
	if errors.Is(err, store.ErrNotFound) {
		return BookRentalResult{}, ErrUserNotFound
	}
	if err != nil {
		return BookRentalResult{}, fmt.Errorf("rental: look up renter: %w", err)
	}
	userID := userDoc.ID

	unlock := s.lockGadget(order.GadgetID)
	defer unlock()

	var orderID string
	entry, hasEntry := lastStreakEntry(order)

	applyStats := func(body map[string]interface{}, direction float64) error {
		if direction > 0 {
			if err := store.AppendToArray(body, "rentalOrders", orderID); err != nil {
				return err
			}
		} else {
			if _, err := store.RemoveFromArray(body, "rentalOrders", orderID); err != nil {
				return err
			}
		}
		if err := store.AddToField(body, "stats.activeRentals", direction); err != nil {
			return err
		}
		if !hasEntry {
			return nil
		}
		for path, delta := range map[string]float64{
			"membershipDetails.points":       entry.Points,
			"stats.pointsEarned":             entry.Points,
			"stats.totalSpent":               entry.PayableFinalAmount,
			"membershipDetails.rentalStreak": float64(entry.RentalDuration),
		} {
			if err := store.AddToField(body, path, direction*delta); err != nil {
				return err
			}
		}
		return nil
	}

	steps := []sagaStep{
		{
			name: "insert_rental_order",
			do: func(stepCtx context.Context) error {
				id, err := s.store.Insert(stepCtx, store.CollectionRentalOrders, "", order)
				if err != nil {
					return err
				}
				orderID = id
				return nil
			},
			undo: func(stepCtx context.Context) error {
				_, err := s.store.DeleteOne(stepCtx, store.CollectionRentalOrders, orderID)
				return err
			},
		},
		{
			name: "apply_renter_stats",
			do: func(stepCtx context.Context) error {
				return s.store.Mutate(stepCtx, store.CollectionUsers, userID, func(body map[string]interface{}) error {
					return applyStats(body, 1)
				})
			},
			undo: func(stepCtx context.Context) error {
				return s.store.Mutate(stepCtx, store.CollectionUsers, userID, func(body map[string]interface{}) error {
					return applyStats(body, -1)
				})
			},
		},
		{
			name: "verify_gadget",
			do: func(stepCtx context.Context) error {
				_, err := s.store.FindOne(stepCtx, store.CollectionGadgets, order.GadgetID)
				if errors.Is(err, store.ErrNotFound) {
					return ErrGadgetNotFound
				}
				return err
			},
		},
		{
			name: "block_gadget_dates",
			do: func(stepCtx context.Context) error {
				if len(order.BlockedDates) == 0 {
					return nil
				}
				dates := make([]interface{}, 0, len(order.BlockedDates))
				for _, date := range order.BlockedDates {
					dates = append(dates, date)
				}
				return s.store.PushArray(stepCtx, store.CollectionGadgets, order.GadgetID, "availability.blockedDates", dates...)
			},
			undo: func(stepCtx context.Context) error {
				if len(order.BlockedDates) == 0 {
					return nil
				}
				// The gadget lock is held, so the appended dates are still
				// the tail of the array.
				return s.store.Mutate(stepCtx, store.CollectionGadgets, order.GadgetID, func(body map[string]interface{}) error {
					existing, ok := store.GetField(body, "availability.blockedDates")
					if !ok {
						return nil
					}
					blocked, ok := existing.([]interface{})
					if !ok || len(blocked) < len(order.BlockedDates) {
						return nil
					}
					return store.SetField(body, "availability.blockedDates", blocked[:len(blocked)-len(order.BlockedDates)])
				})
			},
		},
		{
			name: "record_gadget_rental",
			do: func(stepCtx context.Context) error {
				return s.store.IncrementField(stepCtx, store.CollectionGadgets, order.GadgetID, "totalRentalCount", 1)
			},
		},
	}

	if err := s.runSaga(ctx, sagaRentalBooking, steps); err != nil {
		return BookRentalResult{}, err
	}
	return BookRentalResult{OrderID: orderID, Order: order}, nil
}
