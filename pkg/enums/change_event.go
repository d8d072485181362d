package enums

import (
	"fmt"
	"strings"
)

// ChangeEventType is the row operation a change notification reports.
type ChangeEventType string

const (
	ChangeInsert ChangeEventType = "INSERT"
	ChangeUpdate ChangeEventType = "UPDATE"
	ChangeDelete ChangeEventType = "DELETE"
)

var validChangeEventTypes = []ChangeEventType{
	ChangeInsert,
	ChangeUpdate,
	ChangeDelete,
}

// String implements fmt.Stringer.
func (c ChangeEventType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ChangeEventType.
func (c ChangeEventType) IsValid() bool {
	for _, candidate := range validChangeEventTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseChangeEventType accepts the canonical upper-case names case-insensitively.
func ParseChangeEventType(value string) (ChangeEventType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validChangeEventTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid change event type %q", value)
}

// ChangeEventMask selects which event types a subscription wants.
type ChangeEventMask uint8

const (
	MaskInsert ChangeEventMask = 1 << iota
	MaskUpdate
	MaskDelete

	MaskAll = MaskInsert | MaskUpdate | MaskDelete
)

// MaskFor returns the mask bit for a single event type.
func MaskFor(t ChangeEventType) ChangeEventMask {
	switch t {
	case ChangeInsert:
		return MaskInsert
	case ChangeUpdate:
		return MaskUpdate
	case ChangeDelete:
		return MaskDelete
	}
	return 0
}

// Matches reports whether the mask includes the event type. An empty mask
// matches nothing.
func (m ChangeEventMask) Matches(t ChangeEventType) bool {
	bit := MaskFor(t)
	return bit != 0 && m&bit != 0
}

// Types lists the event types selected by the mask.
func (m ChangeEventMask) Types() []ChangeEventType {
	var out []ChangeEventType
	for _, candidate := range validChangeEventTypes {
		if m.Matches(candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

func (m ChangeEventMask) String() string {
	types := m.Types()
	if len(types) == 0 {
		return "none"
	}
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, "|")
}
