package order

// Order lifecycle statuses. An order moves strictly forward through the
// fulfillment chain; CANCELED is terminal and only reachable before
// shipment.
const (
	StatusPendingPayment = "PENDING_PAYMENT"
	StatusPaid           = "PAID"
	StatusPacked         = "PACKED"
	StatusShipped        = "SHIPPED"
	StatusOutForDelivery = "OUT_FOR_DELIVERY"
	StatusDelivered      = "DELIVERED"
	StatusCanceled       = "CANCELED"
)

// Rank orders the fulfillment chain. Terminal and unknown statuses rank
// below the chain so no transition out of them passes CanTransition.
func Rank(status string) int {
	switch status {
	case StatusPendingPayment:
		return 0
	case StatusPaid:
		return 1
	case StatusPacked:
		return 2
	case StatusShipped:
		return 3
	case StatusOutForDelivery:
		return 4
	case StatusDelivered:
		return 5
	case StatusCanceled:
		return -1
	default:
		return -2
	}
}

// Known reports whether the status is part of the lifecycle.
func Known(status string) bool {
	return Rank(status) >= -1 && status != ""
}

// CanTransition reports whether an order may move from one status to
// another. Forward moves along the chain are allowed one or more steps
// at a time; cancellation is allowed only before the parcel ships.
func CanTransition(from, to string) bool {
	if !Known(from) || !Known(to) || from == to {
		return false
	}
	if to == StatusCanceled {
		return Rank(from) >= 0 && Rank(from) < Rank(StatusShipped)
	}
	fromRank := Rank(from)
	toRank := Rank(to)
	return fromRank >= 0 && toRank > fromRank
}
