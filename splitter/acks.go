package splitter

import (
	"bytes"
	"fmt"
)

// ackSet records which parts of a correlation have been acknowledged, one
// byte per part index: '1' once acknowledged, '0' before.
type ackSet []byte

func newAckSet(parts int) ackSet {
	return ackSet(bytes.Repeat([]byte{'0'}, parts))
}

func parseAckSet(raw []byte, parts int) (ackSet, error) {
	if len(raw) != parts {
		return nil, fmt.Errorf("acks %q: want %d parts", raw, parts)
	}
	for _, b := range raw {
		if b != '0' && b != '1' {
			return nil, fmt.Errorf("acks %q: invalid state %q", raw, b)
		}
	}
	return ackSet(bytes.Clone(raw)), nil
}

// mark acknowledges index. It reports false if index was already acknowledged.
func (a ackSet) mark(index int) bool {
	if a[index] == '1' {
		return false
	}
	a[index] = '1'
	return true
}

func (a ackSet) count() int {
	return bytes.Count(a, []byte{'1'})
}
