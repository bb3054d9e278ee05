package book

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState 在错误状态下调用（如重复应用快照）
	ErrInvalidState = errors.New("订单簿状态不允许该操作")
	// ErrInvalidDiff 增量消息本身不合法（为空或 U > u）
	ErrInvalidDiff = errors.New("增量消息不合法")
	// ErrNonPositiveQuantity Upsert 的数量必须大于 0
	ErrNonPositiveQuantity = errors.New("档位数量必须大于 0")
	// ErrSequenceGap 序列号缺口，当前订单簿必须丢弃并重新同步
	ErrSequenceGap = errors.New("订单簿序列号缺口")
)

// SequenceGapError 序列号缺口错误
// 当 SYNCED 状态下收到 FirstSeq > LastSequence+1 的增量时返回。
type SequenceGapError struct {
	// LastSequence 订单簿当前游标
	LastSequence int64
	// FirstSeq 增量消息的首个序列号
	FirstSeq int64
}

func (e *SequenceGapError) Error() string {
	return fmt.Sprintf("%s: last_sequence=%d, first_seq=%d", ErrSequenceGap.Error(), e.LastSequence, e.FirstSeq)
}

// Is 使 errors.Is(err, ErrSequenceGap) 成立
func (e *SequenceGapError) Is(target error) bool {
	return target == ErrSequenceGap
}
