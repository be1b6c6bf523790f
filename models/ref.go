// ABOUTME: Composite record addressing for leads inside batch documents
// ABOUTME: Formats and parses "{batchId}_{position}" references
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// RecordRef addresses one lead inside a batch document. The reference is
// only valid against the current contents of its home document: a split
// moves suffix records to new (batch, position) pairs, so callers must
// re-resolve refs after any operation that can split.
type RecordRef struct {
	BatchID  string
	Position int
}

// String renders the external composite id.
func (r RecordRef) String() string {
	return fmt.Sprintf("%s_%d", r.BatchID, r.Position)
}

// ParseRecordRef parses a composite id. Batch ids may themselves contain
// underscores (batch_12), so the position is the substring after the final
// underscore: a base-10 integer with no leading zeros.
func ParseRecordRef(s string) (RecordRef, error) {
	idx := strings.LastIndex(s, "_")
	if idx <= 0 || idx == len(s)-1 {
		return RecordRef{}, fmt.Errorf("malformed record ref %q", s)
	}

	posStr := s[idx+1:]
	if len(posStr) > 1 && posStr[0] == '0' {
		return RecordRef{}, fmt.Errorf("malformed record ref %q: position has leading zeros", s)
	}
	pos, err := strconv.Atoi(posStr)
	if err != nil || pos < 0 {
		return RecordRef{}, fmt.Errorf("malformed record ref %q: bad position", s)
	}

	return RecordRef{BatchID: s[:idx], Position: pos}, nil
}
