package catalog

import (
	"time"
)

// Service is a bookable service definition: what can be booked, how long it
// takes by default and what it costs.
type Service struct {
	ID              int64     `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Price           *float64  `db:"price" json:"price,omitempty"`
	Description     *string   `db:"description" json:"description,omitempty"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
