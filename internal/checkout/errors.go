package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrStockBlocked         = errors.New("cart contains out-of-stock products")
	ErrSubmissionInProgress = errors.New("order submission already in progress")
	ErrAlreadySubmitted     = errors.New("order already submitted")
	ErrIllegalTransition    = errors.New("illegal transition of checkout step")
	ErrEditNotAllowed       = errors.New("user role may not edit order lines")
	ErrNoClients            = errors.New("no clients available for this user")
)

// ValidationError blocks progression locally and is never sent to the backend.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StockBlockedError lists the products that must be removed before leaving the products step.
type StockBlockedError struct {
	ProductIDs []int64
}

func (e *StockBlockedError) Error() string {
	ids := make([]string, 0, len(e.ProductIDs))
	for _, id := range e.ProductIDs {
		ids = append(ids, fmt.Sprint(id))
	}
	return fmt.Sprintf("%s: remove products %s", ErrStockBlocked, strings.Join(ids, ", "))
}

func (e *StockBlockedError) Is(target error) bool {
	return target == ErrStockBlocked
}

func illegal(from, to fmt.Stringer) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}
