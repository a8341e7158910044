package domain

import "time"

// Product mirrors the record shape served by the product CRUD API. The relay
// never stores products; it only fans their lifecycle events out to clients.
type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Image       string    `json:"image,omitempty"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DeletedProduct carries the only field a deletion broadcast needs.
type DeletedProduct struct {
	ID string `json:"id"`
}
