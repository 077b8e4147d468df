package profile

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IDSet is a set of VK identifiers in their canonical int64 form.
type IDSet map[int64]struct{}

func NewIDSet(ids ...int64) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s IDSet) Add(id int64) {
	s[id] = struct{}{}
}

func (s IDSet) Has(id int64) bool {
	if s == nil {
		return false
	}
	_, ok := s[id]
	return ok
}

func (s IDSet) Len() int {
	return len(s)
}

// Intersect counts identifiers present in both sets.
func (s IDSet) Intersect(other IDSet) int {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	count := 0
	for id := range small {
		if large.Has(id) {
			count++
		}
	}
	return count
}

// ParseID normalizes an identifier decoded from an external source into int64.
// Strings may carry surrounding whitespace or an "id" prefix.
func ParseID(v any) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) || math.IsNaN(val) {
			return 0, fmt.Errorf("identifier %v is not an integer", val)
		}
		return int64(val), nil
	case json.Number:
		return strconv.ParseInt(val.String(), 10, 64)
	case []byte:
		return ParseID(string(val))
	case string:
		trimmed := strings.TrimPrefix(strings.TrimSpace(val), "id")
		id, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse identifier %q: %w", val, err)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("unsupported identifier type %T", v)
	}
}
