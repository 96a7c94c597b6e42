package connection

import "time"

// Connection statuses. A connection starts as an inquiry; completed,
// declined, and cancelled are terminal.
const (
	StatusInquiry   = "inquiry"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusDeclined  = "declined"
	StatusCancelled = "cancelled"
)

// Connection tracks a buyer/supplier relationship, optionally anchored to a
// specific need and capability. The buyer/supplier pairing is immutable once
// created; re-pairing requires a new connection.
type Connection struct {
	ID                 string
	BuyerBusinessID    string
	SupplierBusinessID string
	NeedID             string
	CapabilityID       string
	ConnectionType     string
	MatchScore         *float64
	Notes              string
	EstimatedValue     *float64
	ActualValue        *float64
	Status             string
	InitiatorUserID    string
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

var transitions = map[string][]string{
	StatusInquiry: {StatusActive, StatusDeclined},
	StatusActive:  {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether the state machine permits moving from the
// current status to the target.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status admits no further transitions.
func Terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusDeclined, StatusCancelled:
		return true
	}
	return false
}

// ValidStatus reports whether status is a known connection status.
func ValidStatus(status string) bool {
	switch status {
	case StatusInquiry, StatusActive, StatusCompleted, StatusDeclined, StatusCancelled:
		return true
	}
	return false
}
