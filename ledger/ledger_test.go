package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"stocks-simulator/database"
	"stocks-simulator/models"
	"stocks-simulator/quote"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type fixture struct {
	ledger *Ledger
	db     *gorm.DB
	quotes quote.Fixed
	user   uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn), logger.Silent)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	quotes := quote.Fixed{}
	quotes.Set("AAA", "AAA Holdings", dec(50))
	quotes.Set("BBB", "BBB Industries", dec(20))

	l := New(db, quotes, DefaultStartingCash, zerolog.Nop())
	u, err := l.Register(context.Background(), "alice", "pw", "pw")
	require.NoError(t, err)
	return &fixture{ledger: l, db: db, quotes: quotes, user: u.ID}
}

func (f *fixture) cash(t *testing.T) decimal.Decimal {
	t.Helper()
	u, err := f.ledger.User(context.Background(), f.user)
	require.NoError(t, err)
	return u.Cash
}

func (f *fixture) position(t *testing.T, symbol string) *models.Position {
	t.Helper()
	p, err := findPosition(f.db, f.user, symbol)
	require.NoError(t, err)
	return p
}

func (f *fixture) history(t *testing.T) []models.Transaction {
	t.Helper()
	h, err := f.ledger.History(context.Background(), f.user)
	require.NoError(t, err)
	return h
}

// assertCashReconciles checks cash == starting cash - sum of signed transaction values.
func (f *fixture) assertCashReconciles(t *testing.T) {
	t.Helper()
	spent := decimal.Zero
	for _, tx := range f.history(t) {
		spent = spent.Add(tx.SignedValue())
	}
	assert.True(t, DefaultStartingCash.Sub(spent).Equal(f.cash(t)), "cash %s, spent %s", f.cash(t), spent)
}

func TestBuyThenSellEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trade, err := f.ledger.Buy(ctx, f.user, "aaa", 10)
	require.NoError(t, err)
	assert.True(t, trade.Cash.Equal(dec(9500)))
	assert.True(t, f.cash(t).Equal(dec(9500)))

	pos := f.position(t, "AAA")
	require.NotNil(t, pos)
	assert.Equal(t, 10, pos.Shares)
	assert.Equal(t, "AAA Holdings", pos.Name)
	assert.True(t, pos.AveragePrice.Equal(dec(50)))
	assert.True(t, pos.TotalCost.Equal(dec(500)))

	h := f.history(t)
	require.Len(t, h, 1)
	assert.Equal(t, 10, h[0].Shares)
	assert.True(t, h[0].UnitPrice.Equal(dec(50)))
	assert.True(t, h[0].TotalValue.Equal(dec(500)))

	f.quotes.Set("AAA", "AAA Holdings", dec(60))
	trade, err = f.ledger.Sell(ctx, f.user, "AAA", 10)
	require.NoError(t, err)
	assert.True(t, trade.Cash.Equal(dec(10100)))
	assert.True(t, f.cash(t).Equal(dec(10100)))
	assert.Nil(t, f.position(t, "AAA"), "position removed after full sell")

	h = f.history(t)
	require.Len(t, h, 2)
	assert.Equal(t, -10, h[0].Shares, "newest first")
	assert.True(t, h[0].UnitPrice.Equal(dec(60)))
	assert.True(t, h[0].TotalValue.Equal(dec(600)))
	f.assertCashReconciles(t)
}

func TestRepeatedBuyOverwritesAveragePrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Buy(ctx, f.user, "AAA", 10)
	require.NoError(t, err)
	f.quotes.Set("AAA", "AAA Holdings", dec(70))
	_, err = f.ledger.Buy(ctx, f.user, "AAA", 5)
	require.NoError(t, err)

	pos := f.position(t, "AAA")
	require.NotNil(t, pos)
	assert.Equal(t, 15, pos.Shares)
	assert.True(t, pos.AveragePrice.Equal(dec(70)), "last trade price, not weighted")
	assert.True(t, pos.TotalCost.Equal(dec(850)))
	assert.True(t, f.cash(t).Equal(dec(9150)))

	var count int64
	require.NoError(t, f.db.Model(&models.Position{}).Where("user_id = ?", f.user).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	f.assertCashReconciles(t)
}

func TestPartialSell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Buy(ctx, f.user, "AAA", 10)
	require.NoError(t, err)
	f.quotes.Set("AAA", "AAA Holdings", dec(60))
	trade, err := f.ledger.Sell(ctx, f.user, "AAA", 4)
	require.NoError(t, err)
	assert.Equal(t, -4, trade.Transaction.Shares)

	pos := f.position(t, "AAA")
	require.NotNil(t, pos)
	assert.Equal(t, 6, pos.Shares)
	assert.True(t, pos.AveragePrice.Equal(dec(60)))
	assert.True(t, pos.TotalCost.Equal(dec(260)))
	assert.True(t, f.cash(t).Equal(dec(9740)))
	f.assertCashReconciles(t)
}

func TestBuyInsufficientFundsChangesNothing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", f.user).Update("cash", dec(100)).Error)

	_, err := f.ledger.Buy(context.Background(), f.user, "AAA", 5)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assert.True(t, f.cash(t).Equal(dec(100)))
	assert.Nil(t, f.position(t, "AAA"))
	assert.Empty(t, f.history(t))
}

func TestBuyErrors(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		shares  int
		wantErr error
	}{
		{"zero shares", "AAA", 0, ErrInvalidInput},
		{"negative shares", "AAA", -3, ErrInvalidInput},
		{"empty symbol", "", 1, ErrInvalidInput},
		{"unknown symbol", "ZZZ", 1, ErrSymbolNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.ledger.Buy(context.Background(), f.user, tt.symbol, tt.shares)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, f.cash(t).Equal(DefaultStartingCash))
			assert.Empty(t, f.history(t))
		})
	}
}

func TestSellErrors(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		shares  int
		wantErr error
	}{
		{"zero shares", "AAA", 0, ErrInvalidInput},
		{"negative shares", "AAA", -1, ErrInvalidInput},
		{"unknown symbol", "ZZZ", 1, ErrSymbolNotFound},
		{"not owned", "BBB", 1, ErrPositionNotOwned},
		{"more than owned", "AAA", 11, ErrInsufficientShares},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.ledger.Buy(context.Background(), f.user, "AAA", 10)
			require.NoError(t, err)

			_, err = f.ledger.Sell(context.Background(), f.user, tt.symbol, tt.shares)
			assert.ErrorIs(t, err, tt.wantErr)

			pos := f.position(t, "AAA")
			require.NotNil(t, pos)
			assert.Equal(t, 10, pos.Shares)
			assert.True(t, f.cash(t).Equal(dec(9500)))
			assert.Len(t, f.history(t), 1)
		})
	}
}

func TestTradeForUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Buy(context.Background(), f.user+100, "AAA", 1)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestParseShares(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"10", 10, false},
		{" 3 ", 3, false},
		{"0", 0, true},
		{"-2", 0, true},
		{"1.5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseShares(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConcurrentBuysKeepLedgerConsistent(t *testing.T) {
	f := newFixture(t)
	f.quotes.Set("AAA", "AAA Holdings", dec(10))

	const buyers = 20
	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Buy(context.Background(), f.user, "AAA", 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	pos := f.position(t, "AAA")
	require.NotNil(t, pos)
	assert.Equal(t, buyers, pos.Shares)
	assert.True(t, f.cash(t).Equal(dec(10000-10*buyers)))
	assert.Len(t, f.history(t), buyers)
	f.assertCashReconciles(t)
}

func TestShareDeltasMatchPositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	steps := []struct {
		buy    bool
		symbol string
		shares int
	}{
		{true, "AAA", 5}, {true, "BBB", 7}, {false, "AAA", 2}, {true, "AAA", 4},
		{false, "BBB", 7}, {false, "AAA", 1}, {true, "BBB", 3},
	}
	for _, s := range steps {
		var err error
		if s.buy {
			_, err = f.ledger.Buy(ctx, f.user, s.symbol, s.shares)
		} else {
			_, err = f.ledger.Sell(ctx, f.user, s.symbol, s.shares)
		}
		require.NoError(t, err)
	}

	deltas := map[string]int{}
	for _, tx := range f.history(t) {
		deltas[tx.Symbol] += tx.Shares
	}
	for symbol, n := range deltas {
		pos := f.position(t, symbol)
		if n == 0 {
			assert.Nil(t, pos, symbol)
			continue
		}
		require.NotNil(t, pos, symbol)
		assert.Equal(t, n, pos.Shares, symbol)
	}
	f.assertCashReconciles(t)
}

func TestQuote(t *testing.T) {
	f := newFixture(t)

	q, err := f.ledger.Quote(context.Background(), "bbb")
	require.NoError(t, err)
	assert.Equal(t, "BBB", q.Symbol)
	assert.True(t, q.Price.Equal(dec(20)))

	_, err = f.ledger.Quote(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSymbolNotFound)
	_, err = f.ledger.Quote(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
