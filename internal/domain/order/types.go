package order

type Status string

const (
	StatusPending    Status = "PENDING"    // Order created, not yet processed
	StatusReserved   Status = "RESERVED"   // Stock reserved, awaiting payment
	StatusProcessing Status = "PROCESSING" // Payment in progress
	StatusPaid       Status = "PAID"       // Payment successful, stock confirmed
	StatusFailed     Status = "FAILED"     // Payment or stock step failed
	StatusCanceled   Status = "CANCELED"   // Canceled by user before payment
	StatusRefunded   Status = "REFUNDED"   // Canceled by user after payment
	StatusShipped    Status = "SHIPPED"    // Set by fulfillment, not by checkout
	StatusDelivered  Status = "DELIVERED"  // Set by fulfillment, not by checkout
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusReserved, StatusProcessing, StatusPaid,
		StatusFailed, StatusCanceled, StatusRefunded, StatusShipped, StatusDelivered:
		return true
	default:
		return false
	}
}

// IsAlreadyCanceled reports whether a cancel request would be a no-op repeat.
func (s Status) IsAlreadyCanceled() bool {
	return s == StatusCanceled || s == StatusRefunded
}

// IsFulfilled reports whether the order has left the warehouse; such orders can
// only go through a return process, never a cancel.
func (s Status) IsFulfilled() bool {
	return s == StatusShipped || s == StatusDelivered
}
