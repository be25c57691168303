package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FolioItem is one normalized charge line from a guest folio
type FolioItem struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// Document is one reservation document fetched from an external system
// (registration card, signed authorization, scanned ID, confirmation)
type Document struct {
	Kind        string `json:"kind"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"-"`
}
