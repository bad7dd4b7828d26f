package orders

import (
	"fmt"

	"github.com/mercatohq/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercatohq/mercato-backend/pkg/errors"
)

// forward transitions only; cancellation is handled by CancelOrder so the
// stock restore cannot be skipped
var advanceTransitions = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusPending:    enums.OrderStatusProcessing,
	enums.OrderStatusProcessing: enums.OrderStatusShipped,
	enums.OrderStatusShipped:    enums.OrderStatusDelivered,
}

func guardAdvance(current, next enums.OrderStatus) error {
	if allowed, ok := advanceTransitions[current]; ok && allowed == next {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot advance order from %s to %s", current, next))
}

func guardCancel(current enums.OrderStatus) error {
	switch current {
	case enums.OrderStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeAlreadyCancelled, "order is already cancelled")
	case enums.OrderStatusPending, enums.OrderStatusProcessing:
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot cancel order in status %s", current))
	}
}
