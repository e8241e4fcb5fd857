package application

import (
	"context"

	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// HealthStatus is the service health view served by the health endpoint.
type HealthStatus struct {
	Status    string // "ok" or "degraded".
	Available int    // Undispensed units; -1 when the inventory could not be read.
	LowStock  bool
}

// HealthService reports whether the backing store answers and whether stock
// is running low. It depends only on port interfaces.
type HealthService struct {
	inventory         driven.MailInventory
	lowStockThreshold int
}

// NewHealthService creates a new HealthService. A lowStockThreshold of 0
// disables the low-stock flag.
func NewHealthService(inventory driven.MailInventory, lowStockThreshold int) *HealthService {
	return &HealthService{
		inventory:         inventory,
		lowStockThreshold: lowStockThreshold,
	}
}

// Check probes the inventory store.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	n, err := s.inventory.Count(ctx)
	if err != nil {
		return HealthStatus{Status: "degraded", Available: -1}
	}

	return HealthStatus{
		Status:    "ok",
		Available: n,
		LowStock:  s.lowStockThreshold > 0 && n < s.lowStockThreshold,
	}
}
