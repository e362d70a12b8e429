package compperm_test

import (
	"testing"

	"github.com/polyfm/fmindex/compperm"
	"github.com/stretchr/testify/assert"
)

func allBlocks(b, a int) [][]uint8 {
	var out [][]uint8
	var rec func(prefix []uint8)
	rec = func(prefix []uint8) {
		if len(prefix) == b {
			out = append(out, append([]uint8(nil), prefix...))
			return
		}
		for s := 0; s < a; s++ {
			rec(append(prefix, uint8(s)))
		}
	}
	rec(nil)
	return out
}

// TestRoundTripIsBijection covers property P4: blockToIndexPair and
// indexPairToBlock must be mutual inverses, and every (compIdx, permIdx)
// pair produced must be unique with permIdx < that composition's count.
func TestRoundTripIsBijection(t *testing.T) {
	b, a := 3, 3
	table, err := compperm.Init(b, a)
	assert.NoError(t, err)

	seen := make(map[[2]uint64]bool)
	for _, block := range allBlocks(b, a) {
		compIdx, permIdx, _, err := table.BlockToIndexPair(block)
		assert.NoError(t, err)
		assert.Less(t, permIdx, table.NumPerms(compIdx))

		key := [2]uint64{uint64(compIdx), permIdx}
		assert.False(t, seen[key], "duplicate (compIdx, permIdx) pair %v for block %v", key, block)
		seen[key] = true

		got := make([]uint8, b)
		err = table.IndexPairToBlock(compIdx, permIdx, got, b)
		assert.NoError(t, err)
		assert.Equal(t, block, got)
	}

	// Every composition*permutation combination should have been hit
	// exactly once, so the map covers the whole table.
	total := 0
	for i := 0; i < table.NumCompositions(); i++ {
		total += int(table.NumPerms(i))
	}
	assert.Equal(t, len(seen), total)
}

func TestSymCounts(t *testing.T) {
	table, err := compperm.Init(4, 3)
	assert.NoError(t, err)

	block := []uint8{0, 1, 1, 2}
	compIdx, _, _, err := table.BlockToIndexPair(block)
	assert.NoError(t, err)

	assert.Equal(t, 1, table.SymCountFromComposition(compIdx, 0))
	assert.Equal(t, 2, table.SymCountFromComposition(compIdx, 1))
	assert.Equal(t, 1, table.SymCountFromComposition(compIdx, 2))

	counts := make([]int, 3)
	table.AddSymCountsFromComposition(compIdx, counts)
	assert.Equal(t, []int{1, 2, 1}, counts)
}

func TestInitRejectsOversizedTable(t *testing.T) {
	_, err := compperm.InitWithBudget(16, 20, 1<<10)
	assert.Error(t, err)
}

func TestPartialBlockDecode(t *testing.T) {
	table, err := compperm.Init(4, 2)
	assert.NoError(t, err)

	block := []uint8{1, 0, 1, 1}
	compIdx, permIdx, _, err := table.BlockToIndexPair(block)
	assert.NoError(t, err)

	got := make([]uint8, 4)
	err = table.IndexPairToBlock(compIdx, permIdx, got, 2)
	assert.NoError(t, err)
	assert.Equal(t, block[:2], got[:2])
}
