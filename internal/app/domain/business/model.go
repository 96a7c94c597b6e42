package business

import "time"

// Business is a directory profile. It anchors ownership of capabilities and
// needs and identifies the two parties of a connection.
type Business struct {
	ID          string
	OwnerUserID string
	Name        string
	Description string
	Category    string
	Location    string
	WebsiteURL  string
	Verified    bool
	Local       bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
