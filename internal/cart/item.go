package cart

import (
	"errors"

	"github.com/example/storefront/internal/money"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// LineItem is one product entry in the cart. Its JSON form is the persisted
// contract: {"id","name","price":"$25.00","image","quantity"}.
type LineItem struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Price    money.Amount `json:"price"`
	Image    string       `json:"image"`
	Quantity int          `json:"quantity"`
}

// LineTotal is price times quantity, the per-row figure on the cart page
func (i LineItem) LineTotal() money.Amount {
	return i.Price.Mul(i.Quantity)
}

// State is a snapshot of the cart
type State struct {
	CartItems   []LineItem   `json:"cartItems"`
	TotalAmount money.Amount `json:"totalAmount"`
}

// ValidateQuantity is the caller-side guard for UpdateQuantity.
// The store itself accepts any value.
func ValidateQuantity(quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	return nil
}

// computeTotal sums unit prices; quantity is not applied.
// TODO: switch to LineTotal once the backend confirms which total is authoritative.
func computeTotal(items []LineItem) money.Amount {
	total := money.Zero()
	for _, item := range items {
		total = total.Add(item.Price)
	}
	return total
}
