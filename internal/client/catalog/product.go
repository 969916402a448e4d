// Package catalog searches products and loads product details.
package catalog

import (
	"strconv"
	"strings"
	"time"
)

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

// PricePoint is one observed price.
type PricePoint struct {
	ID    int64     `json:"id"`
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// DiscountRateValue parses DiscountRate ("10%") as a number.
func (p Product) DiscountRateValue() (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(p.DiscountRate), "%")), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// PriceDifference is the saving against the original price.
func (p Product) PriceDifference() int {
	return p.OriginalPrice - p.Price
}

// Pagination describes a page of search results.
type Pagination struct {
	CurrentPage   int  `json:"currentPage"`
	TotalPages    int  `json:"totalPages"`
	PageSize      int  `json:"pageSize"`
	TotalElements int  `json:"totalElements"`
	Last          bool `json:"last"`
}

// SearchResponse is the envelope returned by product search.
type SearchResponse struct {
	Message    string     `json:"message"`
	Data       []Product  `json:"data"`
	Pagination Pagination `json:"pagination"`
}
