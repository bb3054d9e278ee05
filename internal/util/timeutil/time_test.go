package timeutil

import (
	"testing"
	"time"
)

func TestNowNano_Monotonic(t *testing.T) {
	prev := NowNano()
	for i := 0; i < 1000; i++ {
		now := NowNano()
		if now < prev {
			t.Fatalf("NowNano 回退: %d < %d", now, prev)
		}
		prev = now
	}
}

func TestNowMs_CloseToWallClock(t *testing.T) {
	diff := NowMs() - time.Now().UnixMilli()
	if diff < -1000 || diff > 1000 {
		t.Fatalf("NowMs 与系统时间相差 %dms", diff)
	}
	if MsToNano(3) != 3_000_000 {
		t.Fatalf("MsToNano(3) = %d", MsToNano(3))
	}
}
