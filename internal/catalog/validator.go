package catalog

import (
	"context"

	"github.com/imrishuroy/go-license-orderflow/internal/apperr"
)

// Reader is the read side of the catalog.
type Reader interface {
	Get(ctx context.Context, itemID string) (*Item, error)
}

// Validator is the authoritative price lookup and terms gate used by checkout.
type Validator struct {
	items Reader
}

func NewValidator(items Reader) *Validator {
	return &Validator{items: items}
}

// Price returns the sellable item with its current price.
// Unknown and inactive items are both reported as not found.
func (v *Validator) Price(ctx context.Context, itemID string) (Item, error) {
	it, err := v.items.Get(ctx, itemID)
	if err != nil {
		return Item{}, apperr.Transient("catalog unavailable", err)
	}
	if it == nil || !it.Active {
		return Item{}, apperr.NotFound("item not found")
	}
	return *it, nil
}

// RequireTerms rejects a purchase whose buyer did not accept the license terms.
func (v *Validator) RequireTerms(accepted bool) error {
	if !accepted {
		return apperr.InvalidRequest("you must accept the terms and license agreement")
	}
	return nil
}
