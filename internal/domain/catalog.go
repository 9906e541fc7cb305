package domain

import "github.com/shopspring/decimal"

type Category struct {
	ID          string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BgColor     string `json:"bg_color,omitempty"`
	ImageURL    string `json:"img_url,omitempty"`
	ItemCount   int    `json:"items"`
}

// CatalogItem is immutable once loaded.
type CatalogItem struct {
	ID           string          `json:"item_id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	CategoryID   string          `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
	ImageURL     string          `json:"img_url,omitempty"`
	Description  string          `json:"description,omitempty"`
}
