package shipping

import (
	"strings"

	"github.com/tienda-labs/backend-tienda/internal/order"
)

// StatusPending is the shipment status before the courier picks the parcel up.
const StatusPending = "PENDING"

// MapExternalStatus converts courier status labels into the fulfillment
// statuses tracked on shipments and orders. Unknown labels map to "".
func MapExternalStatus(external string) string {
	switch strings.ToLower(strings.TrimSpace(external)) {
	case "picked", "pickup", "shipped", "in_transit", "in-transit":
		return order.StatusShipped
	case "out_for_delivery", "out-for-delivery":
		return order.StatusOutForDelivery
	case "delivered", "received":
		return order.StatusDelivered
	}
	return ""
}

func shipmentRank(status string) int {
	if status == StatusPending || status == "" {
		return 0
	}
	return order.Rank(status)
}

// allowedShipmentTransition keeps courier updates moving forward. Repeats of
// the current status are tolerated so couriers may resend events.
func allowedShipmentTransition(current, next string) bool {
	if current == next {
		return true
	}
	return shipmentRank(next) > shipmentRank(current)
}
