package cart

import (
	"time"

	"github.com/example/storefront/internal/money"
)

const (
	EventItemAdded       = "ItemAddedToCart"
	EventItemRemoved     = "ItemRemovedFromCart"
	EventQuantityUpdated = "CartQuantityUpdated"
	EventCartCleared     = "CartCleared"
)

type ItemAddedToCart struct {
	ProductID string       `json:"product_id"`
	Name      string       `json:"name"`
	Price     money.Amount `json:"price"`
	Quantity  int          `json:"quantity"`
	AddedAt   time.Time    `json:"added_at"`
}

type ItemRemovedFromCart struct {
	ProductID string    `json:"product_id"`
	Removed   int       `json:"removed"`
	RemovedAt time.Time `json:"removed_at"`
}

type CartQuantityUpdated struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Matched   bool      `json:"matched"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CartCleared struct {
	Reason    string    `json:"reason,omitempty"`
	ClearedAt time.Time `json:"cleared_at"`
}
