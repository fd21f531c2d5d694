package entity

import "time"

type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusRented   ListingStatus = "rented"
	ListingStatusReserved ListingStatus = "reserved"
	ListingStatusInactive ListingStatus = "inactive"
)

// Location is a WGS84 point.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Listing is a rental property as shown in the nearby-properties feed.
type Listing struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"ownerId"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	City        string        `json:"city,omitempty"`
	District    string        `json:"district,omitempty"`
	Price       float64       `json:"price"`
	Rooms       int           `json:"rooms"`
	Status      ListingStatus `json:"status"`
	Location    *Location     `json:"location,omitempty"`
	Distance    float64       `json:"distance,omitempty"`
	Photos      []string      `json:"photos,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func (l Listing) FeedKey() string { return l.ID }
