// Package location is the reference registry used to label balances.
package location

import (
	"context"
	"strings"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
)

// Type classifies a stock location.
type Type string

const (
	TypeWarehouse Type = "warehouse"
	TypeSite      Type = "site"
	TypeVehicle   Type = "vehicle"
	TypeLot       Type = "lot"
)

func (t Type) Valid() bool {
	switch t {
	case TypeWarehouse, TypeSite, TypeVehicle, TypeLot:
		return true
	}
	return false
}

// Location is a place (or lot) that holds stock.
type Location struct {
	ID        id.ID     `json:"id"`
	TenantID  string    `json:"tenantId"`
	Name      string    `json:"name"`
	Type      Type      `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks required fields.
func (l *Location) Validate(_ context.Context) error {
	if strings.TrimSpace(l.Name) == "" {
		return apperror.NewValidation("location name is required").WithDetail("field", "name")
	}
	if !l.Type.Valid() {
		return apperror.NewValidation("unknown location type").WithDetail("type", string(l.Type))
	}
	return nil
}

// Repository stores locations.
type Repository interface {
	Create(ctx context.Context, loc Location) error
	GetByID(ctx context.Context, tenantID string, locationID id.ID) (*Location, error)
	List(ctx context.Context, tenantID string) ([]Location, error)
}
