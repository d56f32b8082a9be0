package ledger

import (
	"context"
	"fmt"

	"stocks-simulator/database"
	"stocks-simulator/models"

	"gorm.io/gorm"
)

const snapshotBatchSize = 100

// RefreshPrices re-quotes every symbol the user holds, stores the prices on
// the user's positions and records a stock_prices snapshot for each. Symbols
// that cannot be quoted keep their previous price. It returns the number of
// positions refreshed.
func (l *Ledger) RefreshPrices(ctx context.Context, userID uint) (int, error) {
	positions, err := l.Positions(ctx, userID)
	if err != nil {
		return 0, err
	}

	now := l.now()
	snapshots := make([]models.StockPrice, 0, len(positions))
	for _, p := range positions {
		q, err := l.quotes.Lookup(ctx, p.Symbol)
		if err != nil {
			l.logger.Warn().Err(err).Uint("user_id", userID).Str("symbol", p.Symbol).Msg("price refresh skipped")
			continue
		}
		snapshots = append(snapshots, models.StockPrice{Symbol: p.Symbol, Price: q.Price, Timestamp: now})
	}
	if len(snapshots) == 0 {
		return 0, nil
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range snapshots {
			err := tx.Model(&models.Position{}).
				Where("user_id = ? AND symbol = ?", userID, s.Symbol).
				Updates(map[string]interface{}{"last_price": s.Price, "priced_at": now}).Error
			if err != nil {
				return fmt.Errorf("update %s price: %w", s.Symbol, err)
			}
		}
		return database.CreateInBatches(ctx, tx, snapshots, snapshotBatchSize)
	})
	if err != nil {
		return 0, err
	}

	l.logger.Debug().Uint("user_id", userID).Int("symbols", len(snapshots)).Msg("prices refreshed")
	return len(snapshots), nil
}
