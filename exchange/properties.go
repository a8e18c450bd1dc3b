package exchange

import (
	"encoding/json"
	"maps"
	"strconv"
)

// Reserved property keys for part metadata.
const (
	// PropPartCount is the number of parts produced by one split.
	PropPartCount = "part_count"

	// PropPartIndex is the 0-based index of a part.
	PropPartIndex = "part_index"

	// PropCorrelationID ties a part back to the exchange it was split from.
	PropCorrelationID = "correlation_id"
)

// Properties is a map of message properties.
type Properties map[string]any

// Clone returns a shallow copy. Values are not copied.
func (p Properties) Clone() Properties {
	if p == nil {
		return make(Properties)
	}
	return maps.Clone(p)
}

// String retrieves a string property by key.
func (p Properties) String(key string) (string, bool) {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

// Int retrieves an integer property by key. Numbers that went through a
// JSON round trip are accepted as long as they hold an integral value.
func (p Properties) Int(key string) (int, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

// CorrelationID returns the correlation ID from properties.
func (p Properties) CorrelationID() (string, bool) {
	return p.String(PropCorrelationID)
}

// PartMeta is the typed view of the part metadata stamped on every child
// exchange of one split.
type PartMeta struct {
	Count         int
	Index         int
	CorrelationID string
}

// Apply writes the metadata into props.
func (m PartMeta) Apply(props Properties) {
	props[PropPartCount] = m.Count
	props[PropPartIndex] = m.Index
	props[PropCorrelationID] = m.CorrelationID
}

// PartMetaFrom reads part metadata from props. It returns false if any key
// is missing or malformed.
func PartMetaFrom(props Properties) (PartMeta, bool) {
	count, ok := props.Int(PropPartCount)
	if !ok || count < 0 {
		return PartMeta{}, false
	}
	index, ok := props.Int(PropPartIndex)
	if !ok || index < 0 || index >= count {
		return PartMeta{}, false
	}
	corr, ok := props.CorrelationID()
	if !ok || corr == "" {
		return PartMeta{}, false
	}
	return PartMeta{Count: count, Index: index, CorrelationID: corr}, true
}

// PartMetaOf reads part metadata from the exchange's message properties.
func PartMetaOf(ex *Exchange) (PartMeta, bool) {
	if ex == nil || ex.Message == nil {
		return PartMeta{}, false
	}
	return PartMetaFrom(ex.Message.Properties)
}
