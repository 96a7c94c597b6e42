package impact

import "time"

// Metrics is a point-in-time snapshot of community economic activity. It is
// derived from the catalog in a single consistent read, never stored as a
// mutable entity.
type Metrics struct {
	TotalConnections      int
	ActiveConnections     int
	CompletedConnections  int
	TotalTransactionValue float64
	AvgTransactionValue   float64
	ActiveSuppliers       int
	OpenNeeds             int
	AvgMatchScore         float64
	MoneyKeptInCommunity  float64
	ComputedAt            time.Time
}
