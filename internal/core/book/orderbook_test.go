// Package book 订单簿同步测试
package book

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-quoter/internal/core/model"
)

func lv(price, qty string) model.Level {
	l, err := model.NewLevel(price, qty)
	if err != nil {
		panic(err)
	}
	return l
}

func newSynced(t *testing.T) *OrderBook {
	t.Helper()
	b := New("BTCUSDT")
	require.NoError(t, b.ApplySnapshot(&model.Snapshot{
		Bids:     []model.Level{lv("100", "1")},
		Asks:     []model.Level{lv("101", "1")},
		Sequence: 1000,
	}))
	out, err := b.ApplyDiff(&model.DiffMessage{FirstSeq: 1001, LastSeq: 1001})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, out)
	require.Equal(t, StateSynced, b.State())
	return b
}

func TestOrderBook_SnapshotThenRemovalDiff(t *testing.T) {
	b := New("BTCUSDT")
	require.NoError(t, b.ApplySnapshot(&model.Snapshot{
		Bids:     []model.Level{lv("100", "1")},
		Asks:     []model.Level{lv("101", "1")},
		Sequence: 1000,
	}))
	assert.Equal(t, StateAwaitingFirstDiff, b.State())

	out, err := b.ApplyDiff(&model.DiffMessage{
		FirstSeq: 1001,
		LastSeq:  1001,
		Bids:     []model.Level{lv("100", "0")},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Empty(t, b.Bids(0))
	assert.Equal(t, []model.Level{lv("101", "1")}, b.Asks(0))
	assert.Equal(t, int64(1001), b.LastSequence())
	assert.Equal(t, StateSynced, b.State())

	_, ok := b.MidPrice()
	assert.False(t, ok, "单边为空时中间价不可用")
}

func TestOrderBook_AwaitingDropsOldDiff(t *testing.T) {
	b := New("BTCUSDT")
	require.NoError(t, b.ApplySnapshot(&model.Snapshot{Sequence: 1000}))

	out, err := b.ApplyDiff(&model.DiffMessage{FirstSeq: 990, LastSeq: 999, Bids: []model.Level{lv("1", "1")}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDropped, out)
	assert.Equal(t, StateAwaitingFirstDiff, b.State())
	assert.Equal(t, int64(1000), b.LastSequence())
	assert.Empty(t, b.Bids(0))
}

func TestOrderBook_AwaitingDropsDiffAfterSnapshot(t *testing.T) {
	b := New("BTCUSDT")
	require.NoError(t, b.ApplySnapshot(&model.Snapshot{Sequence: 1000}))

	// U > last+1：不跨越快照，首条增量阶段静默丢弃
	out, err := b.ApplyDiff(&model.DiffMessage{FirstSeq: 1005, LastSeq: 1010})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDropped, out)
	assert.Equal(t, StateAwaitingFirstDiff, b.State())
}

func TestOrderBook_FirstDiffStraddlesSnapshot(t *testing.T) {
	b := New("BTCUSDT")
	require.NoError(t, b.ApplySnapshot(&model.Snapshot{Sequence: 1000}))

	out, err := b.ApplyDiff(&model.DiffMessage{FirstSeq: 995, LastSeq: 1007, Asks: []model.Level{lv("101.5", "2")}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Equal(t, int64(1007), b.LastSequence())
	assert.Equal(t, StateSynced, b.State())
}

func TestOrderBook_GapRaisesWithoutMutation(t *testing.T) {
	b := newSynced(t)
	before := b.Depth(0)

	out, err := b.ApplyDiff(&model.DiffMessage{
		FirstSeq: 1003,
		LastSeq:  1005,
		Bids:     []model.Level{lv("100", "0"), lv("99", "3")},
	})
	assert.Equal(t, OutcomeDropped, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSequenceGap))

	var gap *SequenceGapError
	require.True(t, errors.As(err, &gap))
	assert.Equal(t, int64(1001), gap.LastSequence)
	assert.Equal(t, int64(1003), gap.FirstSeq)

	assert.Equal(t, before, b.Depth(0))
	assert.Equal(t, StateSynced, b.State())
}

func TestOrderBook_SyncedStaleAndOverlap(t *testing.T) {
	b := newSynced(t)

	out, err := b.ApplyDiff(&model.DiffMessage{FirstSeq: 990, LastSeq: 1001, Bids: []model.Level{lv("100", "0")}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDropped, out)
	assert.Len(t, b.Bids(0), 1)

	// 与游标重叠的增量：应用并前移
	out, err = b.ApplyDiff(&model.DiffMessage{FirstSeq: 1000, LastSeq: 1004, Bids: []model.Level{lv("100", "5")}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Equal(t, int64(1004), b.LastSequence())
	best, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, best.Qty.Equal(decimal.NewFromInt(5)))
}

func TestOrderBook_InvalidState(t *testing.T) {
	b := New("BTCUSDT")

	_, err := b.ApplyDiff(&model.DiffMessage{FirstSeq: 1, LastSeq: 1})
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, b.ApplySnapshot(&model.Snapshot{Sequence: 10}))
	err = b.ApplySnapshot(&model.Snapshot{Sequence: 20})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, int64(10), b.LastSequence())
}

func TestOrderBook_InvalidDiff(t *testing.T) {
	b := newSynced(t)

	_, err := b.ApplyDiff(nil)
	assert.ErrorIs(t, err, ErrInvalidDiff)

	_, err = b.ApplyDiff(&model.DiffMessage{FirstSeq: 1005, LastSeq: 1002})
	assert.ErrorIs(t, err, ErrInvalidDiff)

	_, err = b.ApplyDiff(&model.DiffMessage{
		FirstSeq: 1002,
		LastSeq:  1002,
		Bids:     []model.Level{lv("98", "1")},
		Asks:     []model.Level{lv("102", "-1")},
	})
	assert.ErrorIs(t, err, ErrInvalidDiff)
	_, ok := b.bids.Get(decimal.NewFromInt(98))
	assert.False(t, ok, "非法增量不应留下部分变更")
	assert.Equal(t, int64(1001), b.LastSequence())
}

func TestOrderBook_MidPrice(t *testing.T) {
	b := New("BTCUSDT")
	require.NoError(t, b.ApplySnapshot(&model.Snapshot{
		Bids:     []model.Level{lv("100", "1"), lv("99.5", "2")},
		Asks:     []model.Level{lv("101", "1"), lv("102", "1")},
		Sequence: 1,
	}))

	_, ok := b.MidPrice()
	assert.False(t, ok, "未同步时中间价不可用")

	_, err := b.ApplyDiff(&model.DiffMessage{FirstSeq: 2, LastSeq: 2})
	require.NoError(t, err)

	mid, ok := b.MidPrice()
	require.True(t, ok)
	assert.InDelta(t, 100.5, mid, 1e-12)
}

func TestOrderBook_SnapshotSortsAndSkipsZero(t *testing.T) {
	b := New("BTCUSDT")
	require.NoError(t, b.ApplySnapshot(&model.Snapshot{
		Bids:     []model.Level{lv("99", "1"), lv("101", "1"), lv("100", "0"), lv("100.00", "2")},
		Asks:     []model.Level{lv("105", "1"), lv("103", "1")},
		Sequence: 7,
	}))

	bids := b.Bids(0)
	require.Len(t, bids, 3)
	assert.Equal(t, "101", bids[0].Price.String())
	assert.Equal(t, "100", bids[1].Price.String())
	assert.Equal(t, "99", bids[2].Price.String())

	asks := b.Asks(1)
	require.Len(t, asks, 1)
	assert.Equal(t, "103", asks[0].Price.String())
}
