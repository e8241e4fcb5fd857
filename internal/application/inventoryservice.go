package application

import (
	"context"
	"strings"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// RejectedLine identifies a provisioning line that was not stored.
type RejectedLine struct {
	Number int // 1-based position in the submitted batch.
	Reason string
}

// ProvisionResult summarizes a provisioning batch.
type ProvisionResult struct {
	Added    int
	Rejected []RejectedLine
}

// InventoryService validates and loads credential lines into the inventory.
type InventoryService struct {
	inventory driven.MailInventory
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(inventory driven.MailInventory) *InventoryService {
	return &InventoryService{inventory: inventory}
}

// Provision stores every line that parses as a credential, in order. Blank
// lines are ignored; malformed ones are reported and skipped.
func (s *InventoryService) Provision(ctx context.Context, lines []string) (*ProvisionResult, error) {
	result := &ProvisionResult{Rejected: []RejectedLine{}}

	valid := make([]string, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := model.ParseCredential(line); err != nil {
			result.Rejected = append(result.Rejected, RejectedLine{Number: i + 1, Reason: err.Error()})
			continue
		}
		valid = append(valid, strings.TrimSpace(line))
	}

	if len(valid) == 0 {
		return result, nil
	}

	added, err := s.inventory.Add(ctx, valid)
	if err != nil {
		return nil, err
	}
	result.Added = added
	return result, nil
}

// Available returns the number of undispensed units.
func (s *InventoryService) Available(ctx context.Context) (int, error) {
	return s.inventory.Count(ctx)
}
