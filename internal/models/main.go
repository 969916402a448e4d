// Package models defines the core data structures of the backend: users,
// sessions and tracked products.
package models

import "time"

// User represents an application user.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`
	// Username is the login and display name.
	Username string `json:"username"`
	// Email is optional.
	Email string `json:"email,omitempty"`
	// PasswordHash is the bcrypt hash; empty for identity-provider users.
	PasswordHash []byte `json:"-"`
	// Subject is the identity-provider subject; empty for password users.
	Subject string `json:"-"`
}

// Session is an issued session credential.
type Session struct {
	// Token is the opaque value sent as "Session-ID <token>".
	Token string
	// UserID owns the session.
	UserID string
	// ExpiresAt is the end of validity.
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Product is a tracked product with its price history.
type Product struct {
	ID            int64        `json:"id"`
	Brand         string       `json:"brand"`
	Name          string       `json:"productName"`
	Price         int          `json:"price"`
	DiscountRate  string       `json:"discountRate"`
	OriginalPrice int          `json:"originalPrice"`
	URL           string       `json:"productURL"`
	ImageURL      string       `json:"imageURL"`
	PriceHistory  []PricePoint `json:"priceHistoryList"`
	Category      string       `json:"category"`
}

// PricePoint is one observed price of a product.
type PricePoint struct {
	ID    int64     `json:"id"`
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Pagination describes a page of search results.
type Pagination struct {
	CurrentPage   int  `json:"currentPage"`
	TotalPages    int  `json:"totalPages"`
	PageSize      int  `json:"pageSize"`
	TotalElements int  `json:"totalElements"`
	Last          bool `json:"last"`
}

// SearchResult is the envelope returned by product search.
type SearchResult struct {
	Message    string     `json:"message"`
	Data       []Product  `json:"data"`
	Pagination Pagination `json:"pagination"`
}
