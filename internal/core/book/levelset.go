package book

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"orderbook-quoter/internal/core/model"
)

// btreeDegree B 树阶数
const btreeDegree = 32

// LevelSet 单边价格档位集合
// 以价格为键的有序映射：买盘按价格降序，卖盘按价格升序。
// 不变量：价格唯一、数量恒大于 0、任意变更后保持有序。
type LevelSet struct {
	// tree 有序存储，Min() 即最优价
	tree *btree.BTreeG[model.Level]
}

// NewLevelSet 创建单边档位集合
// 参数 side: model.SideBid 或 model.SideAsk
func NewLevelSet(side model.Side) *LevelSet {
	less := func(a, b model.Level) bool { return a.Price.LessThan(b.Price) }
	if side == model.SideBid {
		less = func(a, b model.Level) bool { return a.Price.GreaterThan(b.Price) }
	}
	return &LevelSet{
		tree: btree.NewG(btreeDegree, less),
	}
}

// Upsert 插入或替换价格档位
// 数量必须大于 0；数量为 0 时调用方应使用 Remove。
func (s *LevelSet) Upsert(price, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrNonPositiveQuantity
	}
	s.tree.ReplaceOrInsert(model.Level{Price: price, Qty: qty})
	return nil
}

// Remove 删除价格档位，不存在时为空操作
// 返回: 是否确实删除了档位
func (s *LevelSet) Remove(price decimal.Decimal) bool {
	_, ok := s.tree.Delete(model.Level{Price: price})
	return ok
}

// Apply 应用单条档位变更：数量为 0 删除，否则插入或替换
func (s *LevelSet) Apply(l model.Level) error {
	if l.IsRemoval() {
		s.Remove(l.Price)
		return nil
	}
	return s.Upsert(l.Price, l.Qty)
}

// Replace 整体替换集合内容（快照加载）
// 数量为 0 的档位被跳过；同价格重复出现时以后者为准。
func (s *LevelSet) Replace(levels []model.Level) error {
	s.tree.Clear(false)
	for _, l := range levels {
		if l.IsRemoval() {
			continue
		}
		if err := s.Upsert(l.Price, l.Qty); err != nil {
			return err
		}
	}
	return nil
}

// Best 返回最优档位（买一或卖一）
// 集合为空时 ok=false。
func (s *LevelSet) Best() (model.Level, bool) {
	return s.tree.Min()
}

// Get 查询指定价格的档位
func (s *LevelSet) Get(price decimal.Decimal) (model.Level, bool) {
	return s.tree.Get(model.Level{Price: price})
}

// Len 档位数量
func (s *LevelSet) Len() int {
	return s.tree.Len()
}

// Levels 按方向顺序返回档位拷贝
// 参数 limit: 最多返回的档位数，<=0 表示全部
func (s *LevelSet) Levels(limit int) []model.Level {
	n := s.tree.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.Level, 0, n)
	s.tree.Ascend(func(l model.Level) bool {
		out = append(out, l)
		return len(out) < n
	})
	return out
}
