package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a user's current holding of one symbol. There is at most one row
// per (user, symbol); the row is removed once every share has been sold.
type Position struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       uint            `gorm:"uniqueIndex:idx_stocks_user_symbol;not null" json:"user_id"`
	Symbol       string          `gorm:"uniqueIndex:idx_stocks_user_symbol;size:16;not null" json:"symbol"`
	Name         string          `json:"name"`
	Shares       int             `gorm:"not null" json:"shares"`
	AveragePrice decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"average_price"`
	TotalCost    decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"total_cost"`
	LastPrice    decimal.Decimal `gorm:"type:numeric(20,4)" json:"last_price"`
	PricedAt     *time.Time      `json:"priced_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Position) TableName() string {
	return "stocks"
}

// CurrentPrice is the last refreshed market price, or the last trade price when
// the position has never been refreshed.
func (p Position) CurrentPrice() decimal.Decimal {
	if p.PricedAt == nil {
		return p.AveragePrice
	}
	return p.LastPrice
}

// Value is shares times CurrentPrice.
func (p Position) Value() decimal.Decimal {
	return p.CurrentPrice().Mul(decimal.NewFromInt(int64(p.Shares)))
}

// Transaction is one completed buy (Shares > 0) or sell (Shares < 0).
// TotalValue is always the unsigned trade amount.
type Transaction struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	UserID     uint            `gorm:"index;not null" json:"user_id"`
	Symbol     string          `gorm:"size:16;not null" json:"symbol"`
	Name       string          `json:"name"`
	Shares     int             `gorm:"not null" json:"shares"`
	UnitPrice  decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"unit_price"`
	TotalValue decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"total_value"`
	CreatedAt  time.Time       `gorm:"index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "history"
}

// SignedValue is the cash spent by the transaction: positive for buys,
// negative for sells.
func (t Transaction) SignedValue() decimal.Decimal {
	if t.Shares < 0 {
		return t.TotalValue.Neg()
	}
	return t.TotalValue
}
