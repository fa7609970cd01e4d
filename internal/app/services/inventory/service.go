package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/R3E-Network/studio_layer/internal/app/domain/inventory"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

// Service tracks studio supplies.
type Service struct {
	store storage.InventoryStore
	log   *logger.Logger
}

// New constructs an inventory service.
func New(store storage.InventoryStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("inventory")
	}
	return &Service{store: store, log: log}
}

// List returns items grouped by category, then by name.
func (s *Service) List(ctx context.Context, studioID string) ([]inventory.Item, error) {
	items, err := s.store.ListInventoryItems(ctx, studioID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return strings.ToLower(items[i].ItemName) < strings.ToLower(items[j].ItemName)
	})
	return items, nil
}

// Add stores a new item.
func (s *Service) Add(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	item.ItemName = strings.TrimSpace(item.ItemName)
	item.Category = strings.TrimSpace(item.Category)
	if item.StudioID == "" {
		return inventory.Item{}, fmt.Errorf("studio_id is required")
	}
	if item.ItemName == "" {
		return inventory.Item{}, apperrors.Validation("item_name is required")
	}
	if item.Quantity < 0 || item.MinStock < 0 {
		return inventory.Item{}, apperrors.Validation("quantity and min_stock must not be negative")
	}
	created, err := s.store.CreateInventoryItem(ctx, item)
	if err != nil {
		return inventory.Item{}, err
	}
	s.log.WithContext(ctx).Infof("inventory item %s added", created.ID)
	return created, nil
}

// Update replaces the descriptive fields of an item.
func (s *Service) Update(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	if strings.TrimSpace(item.ItemName) == "" {
		return inventory.Item{}, apperrors.Validation("item_name is required")
	}
	if item.Quantity < 0 || item.MinStock < 0 {
		return inventory.Item{}, apperrors.Validation("quantity and min_stock must not be negative")
	}
	item.ItemName = strings.TrimSpace(item.ItemName)
	return s.store.UpdateInventoryItem(ctx, item)
}

// AdjustStock adds delta to the quantity on hand. The store applies the delta
// in one write, so concurrent adjustments never overwrite each other.
func (s *Service) AdjustStock(ctx context.Context, studioID, id string, delta int) (inventory.Item, error) {
	updated, err := s.store.AdjustInventoryQuantity(ctx, studioID, id, delta)
	if errors.Is(err, storage.ErrInsufficientStock) {
		return inventory.Item{}, apperrors.Validation("stock cannot go below zero")
	}
	if err != nil {
		return inventory.Item{}, err
	}
	s.warnIfLow(ctx, updated)
	return updated, nil
}

// SetStock overwrites the quantity on hand.
func (s *Service) SetStock(ctx context.Context, studioID, id string, qty int) (inventory.Item, error) {
	if qty < 0 {
		return inventory.Item{}, apperrors.Validation("stock cannot go below zero")
	}
	item, err := s.store.GetInventoryItem(ctx, studioID, id)
	if err != nil {
		return inventory.Item{}, err
	}
	item.Quantity = qty
	updated, err := s.store.UpdateInventoryItem(ctx, item)
	if err != nil {
		return inventory.Item{}, err
	}
	s.warnIfLow(ctx, updated)
	return updated, nil
}

func (s *Service) warnIfLow(ctx context.Context, item inventory.Item) {
	if !item.Low() {
		return
	}
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"item_id":   item.ID,
		"quantity":  item.Quantity,
		"min_stock": item.MinStock,
	}).Warn("item below minimum stock")
}

// Delete removes an item.
func (s *Service) Delete(ctx context.Context, studioID, id string) error {
	return s.store.DeleteInventoryItem(ctx, studioID, id)
}

// LowStock lists items below their minimum, in List order.
func (s *Service) LowStock(ctx context.Context, studioID string) ([]inventory.Item, error) {
	items, err := s.List(ctx, studioID)
	if err != nil {
		return nil, err
	}
	var out []inventory.Item
	for _, it := range items {
		if it.Low() {
			out = append(out, it)
		}
	}
	return out, nil
}
