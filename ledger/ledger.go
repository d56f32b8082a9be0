// Package ledger keeps each user's cash, stock positions and transaction
// history consistent across buys and sells.
//
// Every buy and sell runs inside one database transaction while holding a
// per-user lock, so cash, the position row and the history entry change
// together or not at all. Quotes are fetched before the lock is taken.
//
// Repeated buys overwrite a position's average price with the latest trade
// price rather than computing a weighted average; partial sells do the same.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"stocks-simulator/models"
	"stocks-simulator/quote"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultStartingCash is the endowment credited to every new user.
var DefaultStartingCash = decimal.NewFromInt(10000)

type Ledger struct {
	db           *gorm.DB
	quotes       quote.Provider
	startingCash decimal.Decimal
	logger       zerolog.Logger
	now          func() time.Time

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func New(db *gorm.DB, quotes quote.Provider, startingCash decimal.Decimal, logger zerolog.Logger) *Ledger {
	return &Ledger{
		db:           db,
		quotes:       quotes,
		startingCash: startingCash,
		logger:       logger,
		now:          time.Now,
		locks:        make(map[uint]*sync.Mutex),
	}
}

// Trade is the outcome of a successful buy or sell.
type Trade struct {
	Transaction models.Transaction `json:"transaction"`
	Cash        decimal.Decimal    `json:"cash"`
}

// Summary is a user's portfolio valued at the last refreshed prices.
type Summary struct {
	Holdings []models.Position `json:"holdings"`
	Cash     decimal.Decimal   `json:"cash"`
	Total    decimal.Decimal   `json:"total"`
}

// ParseShares converts a form value into a share count.
func ParseShares(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: share amount must be a whole positive number", ErrInvalidInput)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: share amount cannot be negative or zero", ErrInvalidInput)
	}
	return n, nil
}

func (l *Ledger) lockUser(userID uint) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Quote looks symbol up without touching any state.
func (l *Ledger) Quote(ctx context.Context, symbol string) (quote.Quote, error) {
	symbol = quote.Normalize(symbol)
	if symbol == "" {
		return quote.Quote{}, fmt.Errorf("%w: must provide symbol", ErrInvalidInput)
	}
	q, err := l.quotes.Lookup(ctx, symbol)
	if err != nil {
		if !errors.Is(err, quote.ErrNotFound) {
			l.logger.Warn().Err(err).Str("symbol", symbol).Msg("quote lookup failed")
		}
		return quote.Quote{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return q, nil
}

func checkShares(shares int) error {
	if shares < 1 {
		return fmt.Errorf("%w: share amount cannot be negative or zero", ErrInvalidInput)
	}
	return nil
}

// lockedUser loads the user row; on Postgres the row stays locked until tx ends.
func lockedUser(tx *gorm.DB, userID uint) (*models.User, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var user models.User
	if err := q.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func findPosition(tx *gorm.DB, userID uint, symbol string) (*models.Position, error) {
	var pos models.Position
	err := tx.Where("user_id = ? AND symbol = ?", userID, symbol).Take(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// Buy purchases shares of symbol at the current quoted price.
func (l *Ledger) Buy(ctx context.Context, userID uint, symbol string, shares int) (Trade, error) {
	if err := checkShares(shares); err != nil {
		return Trade{}, err
	}
	q, err := l.Quote(ctx, symbol)
	if err != nil {
		return Trade{}, err
	}
	total := q.Price.Mul(decimal.NewFromInt(int64(shares)))

	unlock := l.lockUser(userID)
	defer unlock()

	var trade Trade
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockedUser(tx, userID)
		if err != nil {
			return err
		}
		if total.GreaterThan(user.Cash) {
			return fmt.Errorf("%w: %d shares of %s cost %s, cash is %s",
				ErrInsufficientFunds, shares, q.Symbol, total.StringFixed(2), user.Cash.StringFixed(2))
		}

		cash := user.Cash.Sub(total)
		if err := tx.Model(user).Update("cash", cash).Error; err != nil {
			return fmt.Errorf("debit cash: %w", err)
		}

		record := models.Transaction{
			UserID:     userID,
			Symbol:     q.Symbol,
			Name:       q.Name,
			Shares:     shares,
			UnitPrice:  q.Price,
			TotalValue: total,
			CreatedAt:  l.now(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}

		pos, err := findPosition(tx, userID, q.Symbol)
		if err != nil {
			return err
		}
		if pos == nil {
			pos = &models.Position{
				UserID:       userID,
				Symbol:       q.Symbol,
				Name:         q.Name,
				Shares:       shares,
				AveragePrice: q.Price,
				TotalCost:    total,
			}
			if err := tx.Create(pos).Error; err != nil {
				return fmt.Errorf("create position: %w", err)
			}
		} else {
			pos.Shares += shares
			pos.AveragePrice = q.Price
			pos.TotalCost = pos.TotalCost.Add(total)
			if err := tx.Save(pos).Error; err != nil {
				return fmt.Errorf("update position: %w", err)
			}
		}

		trade = Trade{Transaction: record, Cash: cash}
		return nil
	})
	if err != nil {
		return Trade{}, err
	}

	l.logger.Info().
		Uint("user_id", userID).
		Str("symbol", q.Symbol).
		Int("shares", shares).
		Str("price", q.Price.String()).
		Str("cash", trade.Cash.String()).
		Msg("buy")
	return trade, nil
}

// Sell disposes of shares of symbol at the current quoted price. Selling every
// owned share removes the position.
func (l *Ledger) Sell(ctx context.Context, userID uint, symbol string, shares int) (Trade, error) {
	if err := checkShares(shares); err != nil {
		return Trade{}, err
	}
	q, err := l.Quote(ctx, symbol)
	if err != nil {
		return Trade{}, err
	}
	proceeds := q.Price.Mul(decimal.NewFromInt(int64(shares)))

	unlock := l.lockUser(userID)
	defer unlock()

	var trade Trade
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockedUser(tx, userID)
		if err != nil {
			return err
		}
		pos, err := findPosition(tx, userID, q.Symbol)
		if err != nil {
			return err
		}
		if pos == nil {
			return fmt.Errorf("%w: %s", ErrPositionNotOwned, q.Symbol)
		}
		if shares > pos.Shares {
			return fmt.Errorf("%w: %d requested, %d owned", ErrInsufficientShares, shares, pos.Shares)
		}

		cash := user.Cash.Add(proceeds)
		if err := tx.Model(user).Update("cash", cash).Error; err != nil {
			return fmt.Errorf("credit cash: %w", err)
		}

		record := models.Transaction{
			UserID:     userID,
			Symbol:     q.Symbol,
			Name:       q.Name,
			Shares:     -shares,
			UnitPrice:  q.Price,
			TotalValue: proceeds,
			CreatedAt:  l.now(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}

		if shares == pos.Shares {
			if err := tx.Delete(&models.Position{}, pos.ID).Error; err != nil {
				return fmt.Errorf("delete position: %w", err)
			}
		} else {
			pos.Shares -= shares
			pos.AveragePrice = q.Price
			pos.TotalCost = pos.TotalCost.Sub(proceeds)
			if err := tx.Save(pos).Error; err != nil {
				return fmt.Errorf("update position: %w", err)
			}
		}

		trade = Trade{Transaction: record, Cash: cash}
		return nil
	})
	if err != nil {
		return Trade{}, err
	}

	l.logger.Info().
		Uint("user_id", userID).
		Str("symbol", q.Symbol).
		Int("shares", -shares).
		Str("price", q.Price.String()).
		Str("cash", trade.Cash.String()).
		Msg("sell")
	return trade, nil
}

// Portfolio returns the user's positions valued at their last refreshed price.
func (l *Ledger) Portfolio(ctx context.Context, userID uint) (Summary, error) {
	user, err := l.User(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	positions, err := l.Positions(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	total := user.Cash
	for _, p := range positions {
		total = total.Add(p.Value())
	}
	return Summary{Holdings: positions, Cash: user.Cash, Total: total}, nil
}

// Positions lists the user's holdings ordered by symbol.
func (l *Ledger) Positions(ctx context.Context, userID uint) ([]models.Position, error) {
	var positions []models.Position
	if err := l.db.WithContext(ctx).Where("user_id = ?", userID).Order("symbol").Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	return positions, nil
}

// History lists the user's transactions, newest first.
func (l *Ledger) History(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var history []models.Transaction
	if err := l.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&history).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, nil
}
