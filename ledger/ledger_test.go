package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/ats/backend"
	"github.com/rustyeddy/ats/market"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "history.db"), filepath.Join(dir, "trading.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	s.RegisterInstrument("233740", "KODEX Leverage")
	return s
}

func seed(t *testing.T, s *Store, code string, prices ...float64) {
	t.Helper()

	ticks := make([]market.Tick, 0, len(prices))
	for i, p := range prices {
		ticks = append(ticks, market.Tick{
			Code:            code,
			Price:           p,
			TransactionTime: fmt.Sprintf("2023-06-01 09:%02d:%02d", i/60, i%60),
		})
	}
	require.NoError(t, s.SeedTicks(ticks))
}

func TestInstrumentName(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	name, err := s.InstrumentName("233740")
	require.NoError(t, err)
	assert.Equal(t, "KODEX Leverage", name)

	_, err = s.InstrumentName("999999")
	assert.ErrorIs(t, err, backend.ErrUnknownInstrument)
}

func TestReplayOrderedNoRepeat(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seed(t, s, "233740", 1000, 1010, 1005, 1020)

	sess := s.Session()
	ctx := context.Background()

	var got []float64
	for {
		p, err := sess.CurrentPrice(ctx, "233740")
		if err != nil {
			assert.ErrorIs(t, err, backend.ErrReplayExhausted)
			break
		}
		got = append(got, p)
	}

	assert.Equal(t, []float64{1000, 1010, 1005, 1020}, got)

	// Exhausted stays exhausted.
	_, err := sess.CurrentPrice(ctx, "233740")
	assert.ErrorIs(t, err, backend.ErrReplayExhausted)
}

func TestReplayCursorsIndependentPerSession(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seed(t, s, "233740", 1000, 1010, 1020)

	ctx := context.Background()
	a := s.Session()
	b := s.Session()

	pa, err := a.CurrentPrice(ctx, "233740")
	require.NoError(t, err)
	pa2, err := a.CurrentPrice(ctx, "233740")
	require.NoError(t, err)

	// b starts from the beginning regardless of a's progress.
	pb, err := b.CurrentPrice(ctx, "233740")
	require.NoError(t, err)

	assert.Equal(t, 1000.0, pa)
	assert.Equal(t, 1010.0, pa2)
	assert.Equal(t, 1000.0, pb)
}

func TestReplayNormalizesSignedPrices(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seed(t, s, "233740", -1000, 1010)

	sess := s.Session()
	p, err := sess.CurrentPrice(context.Background(), "233740")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, p)
}

func TestOpenPositionFillsAtReplayPrice(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seed(t, s, "233740", 1000, 990)

	sess := s.Session()
	ctx := context.Background()

	require.NoError(t, sess.OpenPosition(ctx, "acc", "233740", 10))

	active, err := s.ListActive("233740")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].ID)
	assert.Equal(t, 1000.0, active[0].Price)
	assert.Equal(t, 10, active[0].Qty)
	assert.Equal(t, "acc", active[0].AccNo)

	// The open consumed the first tick; the next open fills at the second.
	require.NoError(t, sess.OpenPosition(ctx, "acc", "233740", 5))

	active, err = s.ListActive("233740")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, int64(2), active[1].ID)
	assert.Equal(t, 990.0, active[1].Price)
}

func TestOpenPositionExhaustedSeries(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seed(t, s, "233740", 1000)

	sess := s.Session()
	ctx := context.Background()

	require.NoError(t, sess.OpenPosition(ctx, "acc", "233740", 10))
	err := sess.OpenPosition(ctx, "acc", "233740", 10)
	assert.ErrorIs(t, err, backend.ErrReplayExhausted)

	// The failed open must not write anything.
	active, lerr := s.ListActive("233740")
	require.NoError(t, lerr)
	assert.Len(t, active, 1)
}

func TestLatestTradePrice(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seed(t, s, "233740", 1000, 990)

	sess := s.Session()
	ctx := context.Background()

	_, ok, err := sess.LatestTradePrice(ctx, "233740")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, sess.OpenPosition(ctx, "acc", "233740", 10))
	require.NoError(t, sess.OpenPosition(ctx, "acc", "233740", 10))

	p, ok, err := sess.LatestTradePrice(ctx, "233740")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 990.0, p)
}

func TestClosePositionMovesRecordAtomically(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seed(t, s, "233740", 1000, 1200)

	sess := s.Session()
	ctx := context.Background()

	require.NoError(t, sess.OpenPosition(ctx, "acc", "233740", 10)) // fills at 1000

	cur, err := sess.CurrentPrice(ctx, "233740")
	require.NoError(t, err)
	require.Equal(t, 1200.0, cur)

	profit, err := sess.ClosePosition(ctx, "acc", "233740", 10)
	require.NoError(t, err)
	assert.InDelta(t, 1970.0, profit, 1e-9)

	active, err := s.ListActive("233740")
	require.NoError(t, err)
	assert.Empty(t, active)

	closed, err := s.ListClosed("233740")
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, int64(1), closed[0].ID, "closed trade keeps its original id")
	assert.Equal(t, 1200.0, closed[0].Price)
	assert.InDelta(t, 1970.0, closed[0].Profit, 1e-9, "returned profit matches the booked row")
}

func TestClosePartialQtyBooksAgainstFullEntry(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seed(t, s, "233740", 1000, 1200)

	sess := s.Session()
	ctx := context.Background()

	require.NoError(t, sess.OpenPosition(ctx, "acc", "233740", 10)) // fills at 1000

	_, err := sess.CurrentPrice(ctx, "233740") // 1200
	require.NoError(t, err)

	// Selling fewer shares than were bought still books against the whole
	// entry record, matching how the record is consumed.
	profit, err := sess.ClosePosition(ctx, "acc", "233740", 5)
	require.NoError(t, err)
	assert.InDelta(t, (1200*5-1000*10)*0.985, profit, 1e-9)

	closed, err := s.ListClosed("233740")
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.InDelta(t, profit, closed[0].Profit, 1e-9)
}

func TestClosePositionNoActive(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seed(t, s, "233740", 1000)

	sess := s.Session()
	ctx := context.Background()

	_, err := sess.CurrentPrice(ctx, "233740")
	require.NoError(t, err)

	_, err = sess.ClosePosition(ctx, "acc", "233740", 10)
	assert.ErrorIs(t, err, backend.ErrNoActivePosition)
}

func TestClosePositionWithoutPriceCache(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seed(t, s, "233740", 1000)

	sess := s.Session()
	_, err := sess.ClosePosition(context.Background(), "acc", "233740", 10)
	assert.ErrorIs(t, err, backend.ErrPriceUnavailable)
}

func TestClosePositionConsumesMostRecentForAccount(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seed(t, s, "233740", 1000, 990, 1300)

	sess := s.Session()
	ctx := context.Background()

	require.NoError(t, sess.OpenPosition(ctx, "acc", "233740", 10)) // id 1 @ 1000
	require.NoError(t, sess.OpenPosition(ctx, "acc", "233740", 10)) // id 2 @ 990

	_, err := sess.CurrentPrice(ctx, "233740") // 1300
	require.NoError(t, err)

	_, err = sess.ClosePosition(ctx, "acc", "233740", 10)
	require.NoError(t, err)

	active, err := s.ListActive("233740")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].ID, "close consumes the most recent record")

	closed, err := s.ListClosed("233740")
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, int64(2), closed[0].ID)
}

func TestTradeIDsNeverReused(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seed(t, s, "233740", 1000, 1100, 1050)

	sess := s.Session()
	ctx := context.Background()

	require.NoError(t, sess.OpenPosition(ctx, "acc", "233740", 10)) // id 1 @ 1000, last=1000
	_, err := sess.ClosePosition(ctx, "acc", "233740", 10)
	require.NoError(t, err)

	// id 1 moved to closed; the next open must get id 2.
	require.NoError(t, sess.OpenPosition(ctx, "acc", "233740", 10)) // @ 1100

	active, err := s.ListActive("233740")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(2), active[0].ID)
}
