package domain

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultPrepMinutes is used for products missing from the catalog.
const DefaultPrepMinutes = 5

// PrepTimeEntry maps a catalog product to its expected preparation time.
type PrepTimeEntry struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Minutes   int       `json:"minutes"`
}

// NormalizeProductName is the name key used when an item has no product id.
func NormalizeProductName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
