package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/gadgetswap/backend/internal/store"
)

// featuredCategories is the fixed catalog taxonomy used by the home page.
var featuredCategories = []string{
	"Smartphones", "Laptops", "Tablets", "Smartwatches", "Cameras",
	"Gaming", "Audio", "Headphones", "Speakers", "Wearables", "VR",
	"Drones", "Projectors",
}

const featuredPerCategory = 3

// GadgetWithID pairs a catalog record with its document id.
type GadgetWithID struct {
	ID     string `json:"id"`
	Gadget Gadget `json:"gadget"`
}

// FeaturedGadgets returns the top three gadgets per category, ranked by
// rental popularity.
func (s *Service) FeaturedGadgets(ctx context.Context) ([]GadgetSummary, error) {
	gadgets, err := s.listGadgets(ctx)
	if err != nil {
		return nil, err
	}

	byCategory := map[string][]GadgetWithID{}
	for _, gadget := range gadgets {
		byCategory[gadget.Gadget.Category] = append(byCategory[gadget.Gadget.Category], gadget)
	}

	featured := []GadgetSummary{}
	for _, category := range featuredCategories {
		entries := byCategory[category]
		sort.SliceStable(entries, func(a, b int) bool {
			return entries[a].Gadget.TotalRentalCount > entries[b].Gadget.TotalRentalCount
		})
		if len(entries) > featuredPerCategory {
			entries = entries[:featuredPerCategory]
		}
		for _, entry := range entries {
			featured = append(featured, summarize(entry))
		}
	}
	return featured, nil
}

// AllGadgets returns the full catalog listing.
func (s *Service) AllGadgets(ctx context.Context) ([]GadgetSummary, error) {
	gadgets, err := s.listGadgets(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]GadgetSummary, 0, len(gadgets))
	for _, gadget := range gadgets {
		summaries = append(summaries, summarize(gadget))
	}
	return summaries, nil
}

// GetGadgetByID returns one catalog record.
func (s *Service) GetGadgetByID(ctx context.Context, gadgetID string) (GadgetWithID, error) {
	gadgetDoc, err := s.store.FindOne(ctx, store.CollectionGadgets, gadgetID)
	if errors.Is(err, store.ErrNotFound) {
		return GadgetWithID{}, ErrGadgetNotFound
	}
	if err != nil {
		return GadgetWithID{}, fmt.Errorf("catalog: look up gadget: %w", err)
	}
	var gadget Gadget
	if err := store.DecodeBody(gadgetDoc, &gadget); err != nil {
		return GadgetWithID{}, fmt.Errorf("catalog: decode gadget: %w", err)
	}
	return GadgetWithID{ID: gadgetDoc.ID, Gadget: gadget}, nil
}

// WishlistGadgetDetails resolves the user's wishlist references to full
// catalog records. Dangling references are skipped rather than failing the
// whole call.
func (s *Service) WishlistGadgetDetails(ctx context.Context, userEmail string) ([]GadgetWithID, error) {
	user, err := s.GetUserByEmail(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	details := make([]GadgetWithID, 0, len(user.Wishlist))
	for _, gadgetID := range user.Wishlist {
		gadget, err := s.GetGadgetByID(ctx, gadgetID)
		if errors.Is(err, ErrGadgetNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		details = append(details, gadget)
	}
	return details, nil
}

func (s *Service) listGadgets(ctx context.Context) ([]GadgetWithID, error) {
	records, err := s.store.FindAll(ctx, store.CollectionGadgets)
	if err != nil {
		return nil, fmt.Errorf("catalog: list gadgets: %w", err)
	}
	gadgets := make([]GadgetWithID, 0, len(records))
	for _, record := range records {
		var gadget Gadget
		if err := store.DecodeBody(record, &gadget); err != nil {
			return nil, fmt.Errorf("catalog: decode gadget %s: %w", record.ID, err)
		}
		gadgets = append(gadgets, GadgetWithID{ID: record.ID, Gadget: gadget})
	}
	return gadgets, nil
}

func summarize(entry GadgetWithID) GadgetSummary {
	image := ""
	if len(entry.Gadget.Images) > 0 {
		image = entry.Gadget.Images[0]
	}
	return GadgetSummary{
		ID:            entry.ID,
		Name:          entry.Gadget.Name,
		Category:      entry.Gadget.Category,
		Image:         image,
		PricePerDay:   entry.Gadget.Pricing.PerDay,
		AverageRating: entry.Gadget.AverageRating,
		Description:   entry.Gadget.Description,
		Popularity:    entry.Gadget.TotalRentalCount,
	}
}
