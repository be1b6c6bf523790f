// ABOUTME: Split policy and batch id sequence allocation
// ABOUTME: Ceiling-sized prefix keeps the original id, remainder gets new ids
package batch

import (
	"fmt"
	"regexp"
	"strconv"
)

// HardCeiling is the entry count at which a batch document must split.
const HardCeiling = 250

// TargetCeiling is the adaptive per-document target used when placing new
// records: small collections keep batches small so deletes and splits stay
// cheap, large collections pack more per document to hold the document
// count down. Clamped to [5, 50].
func TargetCeiling(totalRecords int) int {
	target := totalRecords / 50
	if target < 5 {
		return 5
	}
	if target > 50 {
		return 50
	}
	return target
}

// SplitEntries divides entries into fragments of at most ceiling each. The
// first fragment keeps the original document's id, so positions in the
// prefix stay valid; later fragments get fresh ids and their positions
// restart at zero. Entries at or under the ceiling come back as a single
// fragment (no split).
func SplitEntries(entries []string, ceiling int) [][]string {
	if ceiling <= 0 {
		ceiling = HardCeiling
	}
	if len(entries) <= ceiling {
		return [][]string{entries}
	}

	var fragments [][]string
	for start := 0; start < len(entries); start += ceiling {
		end := start + ceiling
		if end > len(entries) {
			end = len(entries)
		}
		fragments = append(fragments, entries[start:end])
	}
	return fragments
}

var batchIDPattern = regexp.MustCompile(`^batch_(\d+)$`)

// FormatBatchID renders a sequential batch id.
func FormatBatchID(n int) string {
	return fmt.Sprintf("batch_%d", n)
}

// MaxBatchNumber scans ids for the batch_<n> pattern and returns the
// largest n found, or 0 if none match. Free-form store-generated ids are
// ignored. Numbers are never reused even when earlier batches were deleted,
// so allocation is always max+1, max+2, ...
func MaxBatchNumber(ids []string) int {
	max := 0
	for _, id := range ids {
		m := batchIDPattern.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max
}
