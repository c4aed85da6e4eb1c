// internal/terminal/policy.go
package terminal

import (
	"errors"
	"fmt"

	"posnexus/internal/catalog"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrStockExhausted  = errors.New("not enough stock")
	ErrNotInCart       = errors.New("product not in cart")
)

// Admission is a passed stock check.
type Admission struct {
	Available int `json:"available"`
	Remaining int `json:"remaining"`
}

// Admit checks whether adding units of p on top of inCart stays within the
// snapshot stock. Remaining is what is left after the add.
func Admit(p catalog.Product, inCart, adding int) (Admission, error) {
	available := p.Stock() - inCart
	if available <= 0 || adding > available {
		return Admission{Available: available}, fmt.Errorf("%w: %s", ErrStockExhausted, p.Name)
	}
	return Admission{Available: available, Remaining: available - adding}, nil
}

func msgAdded(name string, remaining int) string {
	return fmt.Sprintf("%s added (%d remaining)", name, remaining)
}

func msgExhausted(name string) string {
	return fmt.Sprintf("Not enough stock for %s", name)
}

func msgNotFound(code string) string {
	return fmt.Sprintf("Product not found: %s", code)
}

const (
	msgCheckoutBusy    = "Checkout in progress, please wait"
	msgEmptyCart       = "Cart is empty"
	msgCameraFailed    = "Camera unavailable, keep using the keyboard scanner"
	msgCatalogReloaded = "Catalog updated (%d products)"
)
