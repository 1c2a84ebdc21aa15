package dbc

import (
	"fmt"
	"sort"
)

// Values maps signal names to physical values.
type Values map[string]float64

// Encode packs values into a new payload of m.Length bytes. Signals missing
// from values are encoded as physical zero. Values that do not fit their
// signal are saturated; in that case the payload is returned together with a
// *RangeError (errors.Is ErrOutOfRange) naming the saturated signals.
//
// m must be valid (see Message.Validate); catalogs guarantee this.
func Encode(m *Message, values Values) ([]byte, error) {
	for name := range values {
		if _, ok := m.Signal(name); !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownSignal, m.Name, name)
		}
	}
	data := make([]byte, m.Length)
	var saturated []string
	for i := range m.Signals {
		s := &m.Signals[i]
		v, given := values[s.Name]
		raw, ok := s.toRaw(v)
		if !ok && given {
			saturated = append(saturated, s.Name)
		}
		s.put(data, raw)
	}
	if len(saturated) > 0 {
		sort.Strings(saturated)
		return data, &RangeError{Message: m.Name, Signals: saturated}
	}
	return data, nil
}

// Decode unpacks every signal of m from data.
func Decode(m *Message, data []byte) (Values, error) {
	if len(data) != m.Length {
		return nil, fmt.Errorf("%w: %s wants %d bytes, got %d", ErrLengthMismatch, m.Name, m.Length, len(data))
	}
	out := make(Values, len(m.Signals))
	for i := range m.Signals {
		s := &m.Signals[i]
		out[s.Name] = s.toPhysical(s.get(data))
	}
	return out, nil
}
