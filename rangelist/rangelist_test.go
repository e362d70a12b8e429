package rangelist_test

import (
	"bytes"
	"testing"

	"github.com/polyfm/fmindex/rangelist"
	"github.com/stretchr/testify/assert"
)

func buildSample(t *testing.T) *rangelist.List {
	t.Helper()
	l := rangelist.New(2, true, 2)
	// symbol 0 at [0,3), symbol 1 at [3,5), symbol 0 again at [10,12)
	l.Append(0, 3, 0)
	l.Append(3, 2, 1)
	l.Append(10, 2, 0)
	l.Compact()
	return l
}

func TestAppendMergesAdjacentRuns(t *testing.T) {
	l := rangelist.New(1, false, 4)
	l.Append(0, 2, 0)
	l.Append(2, 3, 0)
	l.Compact()

	runs := l.Runs()
	// merged run plus sentinel
	assert.Len(t, runs, 2)
	assert.Equal(t, 0, runs[0].Start)
	assert.Equal(t, 5, runs[0].Length)
}

func TestAppendNewRangeDoesNotMerge(t *testing.T) {
	l := rangelist.New(1, false, 4)
	l.AppendNewRange(0, 2, 0)
	l.AppendNewRange(2, 3, 0)

	runs := l.Runs()
	assert.Len(t, runs, 2) // two distinct runs; nothing merged at append time
}

func TestSymbolCountInRegion(t *testing.T) {
	l := buildSample(t)

	assert.Equal(t, 3, l.SymbolCountInRegion(0, 3, 0, nil))
	assert.Equal(t, 2, l.SymbolCountInRegion(0, 5, 1, nil))
	assert.Equal(t, 0, l.SymbolCountInRegion(5, 10, 0, nil))
	assert.Equal(t, 5, l.SymbolCountInRegion(0, 12, 0, nil))
}

func TestAllSymbolsCountInRegion(t *testing.T) {
	l := buildSample(t)
	assert.Equal(t, 5, l.AllSymbolsCountInRegion(0, 5, nil))
	assert.Equal(t, 0, l.AllSymbolsCountInRegion(5, 10, nil))
	assert.Equal(t, 7, l.AllSymbolsCountInRegion(0, 12, nil))
}

func TestApplyRangesToSubstring(t *testing.T) {
	l := buildSample(t)

	block := make([]uint8, 6)
	for i := range block {
		block[i] = 255 // sentinel for "untouched"
	}
	l.ApplyRangesToSubstring(block, 0, 6, 100, nil)

	assert.Equal(t, []uint8{100, 100, 100, 101, 101, 255}, block)
}

func TestHintAcceleratesRepeatedQueries(t *testing.T) {
	l := buildSample(t)
	var hint rangelist.Hint

	assert.Equal(t, 3, l.SymbolCountInRegion(0, 3, 0, &hint))
	// second query starting where the first left off should give the same
	// answer as without a hint
	assert.Equal(t, 2, l.SymbolCountInRegion(3, 5, 1, &hint))
	assert.Equal(t, 2, l.SymbolCountInRegion(10, 12, 0, &hint))
}

func TestWriteToReadFromRoundTrip(t *testing.T) {
	l := buildSample(t)

	var buf bytes.Buffer
	n, err := l.WriteTo(&buf)
	assert.NoError(t, err)
	assert.Greater(t, n, int64(0))

	l2, err := rangelist.ReadFrom(&buf, 2)
	assert.NoError(t, err)

	assert.Equal(t, l.Runs(), l2.Runs())
	assert.Equal(t, 3, l2.SymbolCountInRegion(0, 3, 0, nil))
	assert.Equal(t, 5, l2.AllSymbolsCountInRegion(0, 5, nil))
}

func TestCompactIsIdempotent(t *testing.T) {
	l := rangelist.New(1, false, 4)
	l.Append(0, 2, 0)
	l.Compact()
	runsBefore := append([]rangelist.Run(nil), l.Runs()...)
	l.Compact()
	assert.Equal(t, runsBefore, l.Runs())
}

func TestAppendAfterCompactPanics(t *testing.T) {
	l := buildSample(t)
	assert.Panics(t, func() {
		l.Append(100, 1, 0)
	})
}

func TestEmptyRegionCounts(t *testing.T) {
	l := buildSample(t)
	assert.Equal(t, 0, l.SymbolCountInRegion(5, 5, 0, nil))
	assert.Equal(t, 0, l.AllSymbolsCountInRegion(5, 5, nil))
}
