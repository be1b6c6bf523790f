// ABOUTME: Tests for the split policy and batch id allocation
package batch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEntries(n int) []string {
	entries := make([]string, n)
	for i := range entries {
		entries[i] = fmt.Sprintf("entry-%d", i)
	}
	return entries
}

func TestSplitEntriesUnderCeilingNoSplit(t *testing.T) {
	entries := makeEntries(10)
	fragments := SplitEntries(entries, 10)
	require.Len(t, fragments, 1)
	assert.Equal(t, entries, fragments[0])
}

func TestSplitEntriesOverCeiling(t *testing.T) {
	entries := makeEntries(25)
	fragments := SplitEntries(entries, 10)
	require.Len(t, fragments, 3)

	// No fragment exceeds the ceiling and concatenation restores the
	// original sequence exactly: nothing lost, nothing duplicated, prefix
	// order preserved.
	var flat []string
	for _, f := range fragments {
		assert.LessOrEqual(t, len(f), 10)
		flat = append(flat, f...)
	}
	assert.Equal(t, entries, flat)
	assert.Equal(t, entries[:10], fragments[0])
}

func TestSplitEntriesExactMultiple(t *testing.T) {
	fragments := SplitEntries(makeEntries(20), 10)
	require.Len(t, fragments, 2)
	assert.Len(t, fragments[0], 10)
	assert.Len(t, fragments[1], 10)
}

func TestSplitEntriesZeroCeilingUsesHardCeiling(t *testing.T) {
	fragments := SplitEntries(makeEntries(HardCeiling+1), 0)
	require.Len(t, fragments, 2)
	assert.Len(t, fragments[0], HardCeiling)
}

func TestTargetCeilingClamped(t *testing.T) {
	assert.Equal(t, 5, TargetCeiling(0))
	assert.Equal(t, 5, TargetCeiling(100))
	assert.Equal(t, 10, TargetCeiling(500))
	assert.Equal(t, 50, TargetCeiling(2500))
	assert.Equal(t, 50, TargetCeiling(100000))
}

func TestMaxBatchNumber(t *testing.T) {
	assert.Equal(t, 0, MaxBatchNumber(nil))
	assert.Equal(t, 7, MaxBatchNumber([]string{"batch_3", "batch_7", "batch_1"}))

	// Store-generated ulid ids and near-misses are ignored.
	assert.Equal(t, 2, MaxBatchNumber([]string{
		"batch_2",
		"01JC5W9GZ0000000000000000X",
		"batch_",
		"batch_x",
		"mybatch_9",
	}))
}

func TestFormatBatchID(t *testing.T) {
	assert.Equal(t, "batch_8", FormatBatchID(8))
}
