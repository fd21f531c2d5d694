package entity

import "time"

// Match pairs a tenant with a listing they both liked.
type Match struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listingId"`
	TenantID  string    `json:"tenantId"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Score     float64   `json:"score"`
	MatchedAt time.Time `json:"matchedAt"`
}

func (m Match) FeedKey() string { return m.ID }
