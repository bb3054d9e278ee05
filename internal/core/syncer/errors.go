package syncer

import (
	"errors"

	"orderbook-quoter/internal/core/book"
	"orderbook-quoter/internal/util/backoff"
)

var (
	// ErrSnapshotFailed 快照获取失败（网络、非 200、解析）
	ErrSnapshotFailed = errors.New("获取快照失败")
	// ErrStreamClosed 增量流断开或建立失败
	ErrStreamClosed = errors.New("增量流已断开")
	// ErrSyncTimeout 快照后超时仍未收到跨越快照的增量
	ErrSyncTimeout = errors.New("等待首条增量超时")
)

// 重同步原因（指标标签）
const (
	ReasonGap            = "gap"
	ReasonStreamClosed   = "stream_closed"
	ReasonSyncTimeout    = "sync_timeout"
	ReasonSnapshotFailed = "snapshot_failed"
	ReasonInvalidState   = "invalid_state"
)

// Classify 将尝试失败原因映射为退避级别与原因标签
func Classify(err error) (backoff.Tier, string) {
	switch {
	case errors.Is(err, book.ErrSequenceGap):
		return backoff.TierShort, ReasonGap
	case errors.Is(err, ErrStreamClosed):
		return backoff.TierShort, ReasonStreamClosed
	case errors.Is(err, ErrSyncTimeout):
		return backoff.TierShort, ReasonSyncTimeout
	case errors.Is(err, ErrSnapshotFailed):
		return backoff.TierLong, ReasonSnapshotFailed
	default:
		return backoff.TierLong, ReasonInvalidState
	}
}
