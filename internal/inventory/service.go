package inventory

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/visiblelab/visibility-bot/internal/models"
	"github.com/visiblelab/visibility-bot/internal/store"
)

// BrandInventory is one eligible brand with its active prompt snapshot.
type BrandInventory struct {
	Brand   models.Brand
	Prompts []models.Prompt
}

// Service computes the set of brands eligible for processing today.
type Service struct {
	store store.InventoryStore
}

// NewService creates a new inventory discovery service
func NewService(s store.InventoryStore) *Service {
	return &Service{store: s}
}

// Discover returns every brand that completed onboarding, belongs to a
// user with reporting enabled, and has at least one active prompt.
//
// On any upstream read failure it returns an empty inventory rather
// than a partial one; callers treat empty as "nothing to schedule",
// never as an error.
func (s *Service) Discover(ctx context.Context) []BrandInventory {
	brands, err := s.store.EligibleBrands(ctx)
	if err != nil {
		logrus.Errorf("Inventory discovery failed to list brands: %v", err)
		return nil
	}

	var inventory []BrandInventory
	for _, brand := range brands {
		prompts, err := s.store.ActivePrompts(ctx, brand.ID)
		if err != nil {
			logrus.Errorf("Inventory discovery failed to load prompts for brand %d: %v", brand.ID, err)
			return nil
		}
		if len(prompts) == 0 {
			continue
		}

		inventory = append(inventory, BrandInventory{Brand: brand, Prompts: prompts})
	}

	logrus.Infof("Inventory discovery found %d eligible brands", len(inventory))
	return inventory
}
