package handler

import (
	"errors"

	"github.com/pompom/go-box-store/internal/database"
	"github.com/pompom/go-box-store/pkg/apierror"
)

// mapStoreError translates store-layer sentinels into API errors. Anything
// unclassified becomes a 500 without leaking internals.
func mapStoreError(err error) *apierror.Error {
	switch {
	case errors.Is(err, database.ErrInsufficientBalance):
		return apierror.InsufficientBalance("")
	case errors.Is(err, database.ErrOutOfStock):
		return apierror.OutOfStock("")
	case errors.Is(err, database.ErrItemNotFound):
		return apierror.NotFound("Inventory item not found")
	case errors.Is(err, database.ErrItemNotOwned):
		return apierror.NotOwned("")
	case errors.Is(err, database.ErrItemAlreadySold):
		return apierror.AlreadySold("")
	case errors.Is(err, database.ErrUserNotFound):
		return apierror.NotFound("User not found")
	case errors.Is(err, database.ErrProductNotFound):
		return apierror.NotFound("Product not found")
	case errors.Is(err, database.ErrOrderNotFound):
		return apierror.NotFound("Order not found")
	case errors.Is(err, database.ErrRetryExhausted):
		return apierror.TransientConflict("")
	default:
		return apierror.InternalError("")
	}
}
