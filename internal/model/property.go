package model

import (
	"time"
)

// Property is a rentable inventory item scoped to one tenant.
type Property struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Title        string    `json:"title"`
	City         string    `json:"city"`
	Neighborhood string    `json:"neighborhood,omitempty"`
	Bedrooms     int       `json:"bedrooms"`
	MaxGuests    int       `json:"max_guests"`
	NightlyRate  float64   `json:"nightly_rate"`
	CleaningFee  float64   `json:"cleaning_fee"`
	Currency     string    `json:"currency"`
	PhotoURLs    []string  `json:"photo_urls,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation is a booking created through the conversation. Creation is
// financially significant and therefore idempotent under retry.
type Reservation struct {
	ID             string            `json:"id"`
	TenantID       string            `json:"tenant_id"`
	PropertyID     string            `json:"property_id"`
	ClientID       string            `json:"client_id"`
	ConversationID string            `json:"conversation_id"`
	CheckIn        string            `json:"check_in"`
	CheckOut       string            `json:"check_out"`
	Guests         int               `json:"guests"`
	TotalAmount    float64           `json:"total_amount"`
	Currency       string            `json:"currency"`
	Status         ReservationStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
