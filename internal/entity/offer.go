package entity

import "time"

type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
	OfferStatusExpired  OfferStatus = "expired"
)

// Offer is a rent proposal made on a listing.
type Offer struct {
	ID         string      `json:"id"`
	ListingID  string      `json:"listingId"`
	TenantID   string      `json:"tenantId"`
	Amount     float64     `json:"amount"`
	Currency   string      `json:"currency,omitempty"`
	Status     OfferStatus `json:"status"`
	Message    string      `json:"message,omitempty"`
	MoveInDate *time.Time  `json:"moveInDate,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

func (o Offer) FeedKey() string { return o.ID }
