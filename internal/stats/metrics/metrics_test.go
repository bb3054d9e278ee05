package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-quoter/internal/core/model"
)

// scrape 抓取 /metrics 文本
func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollector_Counters(t *testing.T) {
	c := New("BTCUSDT")

	c.IncResync("gap")
	c.IncResync("gap")
	c.IncResync("snapshot_failed")
	c.IncDiff("applied")
	c.IncParseError()

	text := scrape(t, c)
	assert.Contains(t, text, `quoter_resyncs_total{reason="gap",symbol="BTCUSDT"} 2`)
	assert.Contains(t, text, `quoter_resyncs_total{reason="snapshot_failed",symbol="BTCUSDT"} 1`)
	assert.Contains(t, text, `quoter_diffs_total{outcome="applied",symbol="BTCUSDT"} 1`)
	assert.Contains(t, text, `quoter_parse_errors_total{symbol="BTCUSDT"} 1`)
}

func TestCollector_ObserveQuote(t *testing.T) {
	c := New("BTCUSDT")
	c.ObserveQuote(&model.Quote{Spread: 0.002, Volatility: 0.5, MidPrice: 100.5})
	c.SetSync(2, 42)
	c.ObserveFeedLag(12)

	text := scrape(t, c)
	assert.Contains(t, text, `quoter_spread{symbol="BTCUSDT"} 0.002`)
	assert.Contains(t, text, `quoter_volatility{symbol="BTCUSDT"} 0.5`)
	assert.Contains(t, text, `quoter_mid_price{symbol="BTCUSDT"} 100.5`)
	assert.Contains(t, text, `quoter_last_sequence{symbol="BTCUSDT"} 42`)
	assert.Contains(t, text, `quoter_sync_state{symbol="BTCUSDT"} 2`)
	assert.Contains(t, text, `quoter_quotes_total{symbol="BTCUSDT"} 1`)
	assert.Contains(t, text, `quoter_feed_lag_ms_count{symbol="BTCUSDT"} 1`)
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.IncResync("gap")
		c.IncDiff("dropped")
		c.IncParseError()
		c.ObserveFeedLag(3)
		c.SetSync(0, 0)
		c.ObserveQuote(&model.Quote{})
	})
	assert.Nil(t, c.Registry())
	assert.NotNil(t, c.Handler())
}
