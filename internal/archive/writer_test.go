package archive

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grid-trading-btc-binance/internal/model"
)

func TestWriteTradeAppendsJSONLUnderDatePartition(t *testing.T) {
	dir := t.TempDir()
	w, err := NewJSONLWriter(dir)
	require.NoError(t, err)
	w.now = func() time.Time { return time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC) }

	trade, err := model.NewTradeEvent("BINANCE", "BTCUSDT", model.SideBuy, decimal.NewFromInt(65000), decimal.NewFromFloat(0.1), 1690000000000, "1")
	require.NoError(t, err)

	require.NoError(t, w.WriteTrade(trade))
	require.NoError(t, w.WriteTrade(trade))
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "2026-07-30", "BTCUSDT.jsonl")
	lines := readLines(t, path)
	assert.Len(t, lines, 2)
}

func TestWriteAlertAppendsToSharedFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewJSONLWriter(dir)
	require.NoError(t, err)

	alert := model.Alert{ID: "abc", RenderedMessage: "hello", EnqueuedAt: time.Now()}
	require.NoError(t, w.WriteAlert(alert))
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "alerts", "alerts.jsonl")
	lines := readLines(t, path)
	assert.Len(t, lines, 1)
}

func TestNoopWriterDiscardsEverything(t *testing.T) {
	var w Writer = NoopWriter{}
	assert.NoError(t, w.WriteTrade(model.TradeEvent{}))
	assert.NoError(t, w.WriteAlert(model.Alert{}))
	assert.NoError(t, w.Close())
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}
