// Package book 订单簿属性测试
package book

import (
	"errors"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"orderbook-quoter/internal/core/model"
)

// decodeChange 把随机整数解码为档位变更：价格 90-109，数量 0-4（0 为删除）
func decodeChange(v int) model.Level {
	price := int64(90 + v%20)
	qty := int64((v / 20) % 5)
	return model.Level{Price: decimal.NewFromInt(price), Qty: decimal.NewFromInt(qty)}
}

// applyReference 参考实现：map 直接累积变更
func applyReference(ref map[int64]int64, changes []model.Level) {
	for _, c := range changes {
		p := c.Price.IntPart()
		if c.Qty.IsZero() {
			delete(ref, p)
			continue
		}
		ref[p] = c.Qty.IntPart()
	}
}

// sameAsReference 比较订单簿一侧与参考 map（含排序方向）
func sameAsReference(levels []model.Level, ref map[int64]int64, desc bool) bool {
	keys := make([]int64, 0, len(ref))
	for k := range ref {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if desc {
			return keys[i] > keys[j]
		}
		return keys[i] < keys[j]
	})
	if len(keys) != len(levels) {
		return false
	}
	for i, k := range keys {
		if levels[i].Price.IntPart() != k || levels[i].Qty.IntPart() != ref[k] {
			return false
		}
	}
	return true
}

// wellFormed 检查单边档位：价格唯一、数量为正、按方向有序
func wellFormed(levels []model.Level, desc bool) bool {
	for i, l := range levels {
		if !l.Qty.IsPositive() {
			return false
		}
		if i == 0 {
			continue
		}
		prev := levels[i-1].Price
		if desc && !prev.GreaterThan(l.Price) {
			return false
		}
		if !desc && !prev.LessThan(l.Price) {
			return false
		}
	}
	return true
}

// TestOrderBook_BatchingIndependence 无缺口增量序列的最终状态与分批方式无关
func TestOrderBook_BatchingIndependence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("最终状态等于累积变更的直接构造", prop.ForAll(
		func(bidRaw, askRaw []int, batch int) bool {
			bids := make([]model.Level, len(bidRaw))
			for i, v := range bidRaw {
				bids[i] = decodeChange(v)
			}
			asks := make([]model.Level, len(askRaw))
			for i, v := range askRaw {
				asks[i] = decodeChange(v)
			}

			b := New("BTCUSDT")
			if err := b.ApplySnapshot(&model.Snapshot{Sequence: 100}); err != nil {
				return false
			}

			seq := int64(101)
			n := max(len(bids), len(asks))
			batches := max(1, (n+batch-1)/batch)
			for i := 0; i < batches; i++ {
				start, end := i*batch, (i+1)*batch
				d := &model.DiffMessage{FirstSeq: seq, LastSeq: seq + int64(batch) - 1}
				if start < len(bids) {
					d.Bids = bids[start:min(end, len(bids))]
				}
				if start < len(asks) {
					d.Asks = asks[start:min(end, len(asks))]
				}
				out, err := b.ApplyDiff(d)
				if err != nil || out != OutcomeApplied {
					return false
				}
				seq = d.LastSeq + 1
			}

			refBids := map[int64]int64{}
			refAsks := map[int64]int64{}
			applyReference(refBids, bids)
			applyReference(refAsks, asks)

			return b.LastSequence() == seq-1 &&
				sameAsReference(b.Bids(0), refBids, true) &&
				sameAsReference(b.Asks(0), refAsks, false)
		},
		gen.SliceOf(gen.IntRange(0, 99)),
		gen.SliceOf(gen.IntRange(0, 99)),
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}

// TestLevelSet_Invariants 任意变更后：价格唯一、无零数量、方向有序
func TestLevelSet_Invariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("档位集合不变量", prop.ForAll(
		func(raw []int, bidSide bool) bool {
			side := model.SideAsk
			if bidSide {
				side = model.SideBid
			}
			s := NewLevelSet(side)
			for _, v := range raw {
				if err := s.Apply(decodeChange(v)); err != nil {
					return false
				}
			}
			return wellFormed(s.Levels(0), bidSide)
		},
		gen.SliceOf(gen.IntRange(0, 99)),
		gen.Bool(),
	))

	properties.Property("删除不存在的价格为空操作", prop.ForAll(
		func(raw []int, missing int) bool {
			s := NewLevelSet(model.SideBid)
			for _, v := range raw {
				_ = s.Apply(decodeChange(v))
			}
			// 价格 200+ 不会由 decodeChange 生成
			before := s.Levels(0)
			removed := s.Remove(decimal.NewFromInt(int64(200 + missing)))
			after := s.Levels(0)
			if removed || len(before) != len(after) {
				return false
			}
			for i := range before {
				if !before[i].Price.Equal(after[i].Price) || !before[i].Qty.Equal(after[i].Qty) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 99)),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

// TestOrderBook_GapNeverMutates 任意 U > last+1 的增量都触发缺口且不修改订单簿
func TestOrderBook_GapNeverMutates(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("缺口不修改订单簿", prop.ForAll(
		func(skip int64, span int64, raw []int) bool {
			b := New("BTCUSDT")
			_ = b.ApplySnapshot(&model.Snapshot{
				Bids:     []model.Level{{Price: decimal.NewFromInt(95), Qty: decimal.NewFromInt(1)}},
				Asks:     []model.Level{{Price: decimal.NewFromInt(105), Qty: decimal.NewFromInt(1)}},
				Sequence: 500,
			})
			if out, err := b.ApplyDiff(&model.DiffMessage{FirstSeq: 501, LastSeq: 501}); err != nil || out != OutcomeApplied {
				return false
			}

			changes := make([]model.Level, len(raw))
			for i, v := range raw {
				changes[i] = decodeChange(v)
			}
			before := b.Depth(0)
			first := b.LastSequence() + 1 + skip
			_, err := b.ApplyDiff(&model.DiffMessage{FirstSeq: first, LastSeq: first + span, Bids: changes, Asks: changes})

			var gap *SequenceGapError
			if err == nil || !errors.As(err, &gap) {
				return false
			}
			after := b.Depth(0)
			return gap.LastSequence == 501 && gap.FirstSeq == first &&
				after.Sequence == before.Sequence &&
				len(after.Bids) == len(before.Bids) && len(after.Asks) == len(before.Asks)
		},
		gen.Int64Range(1, 1000),
		gen.Int64Range(0, 50),
		gen.SliceOf(gen.IntRange(0, 99)),
	))

	properties.TestingRun(t)
}

// TestLevelSet_RemoveMissingIsNoop 删除不存在价格的增量对该侧无影响
func TestLevelSet_RemoveMissingIsNoop(t *testing.T) {
	b := New("BTCUSDT")
	if err := b.ApplySnapshot(&model.Snapshot{
		Bids:     []model.Level{{Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(1)}},
		Sequence: 1,
	}); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	out, err := b.ApplyDiff(&model.DiffMessage{
		FirstSeq: 2,
		LastSeq:  2,
		Bids:     []model.Level{{Price: decimal.NewFromInt(98), Qty: decimal.Zero}},
	})
	if err != nil || out != OutcomeApplied {
		t.Fatalf("ApplyDiff: out=%s err=%v", out, err)
	}
	bids := b.Bids(0)
	if len(bids) != 1 || !bids[0].Price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("bids=%v, want [100]", bids)
	}
}

// TestLevelSet_UpsertRejectsZero 数量为 0 的 Upsert 返回错误且不修改集合
func TestLevelSet_UpsertRejectsZero(t *testing.T) {
	s := NewLevelSet(model.SideAsk)
	if err := s.Upsert(decimal.NewFromInt(1), decimal.Zero); err != ErrNonPositiveQuantity {
		t.Fatalf("err=%v, want ErrNonPositiveQuantity", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len=%d, want 0", s.Len())
	}
	if _, ok := s.Best(); ok {
		t.Fatalf("空集合 Best 应返回 ok=false")
	}
}
