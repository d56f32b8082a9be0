package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockPrice is a price observation recorded on every refresh.
type StockPrice struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Symbol    string          `gorm:"index;size:16;not null" json:"symbol"`
	Price     decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"price"`
	Timestamp time.Time       `gorm:"index" json:"timestamp"`
}
