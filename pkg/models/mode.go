package models

import (
	"fmt"

	"github.com/bizref/bizref/pkg/constants"
)

// ReferenceMode selects how an entity is written at a position in the document.
//
// The set is closed. Adding a mode means auditing every switch over it in the
// scope resolver and in refjson.
type ReferenceMode uint8

const (
	// Reference writes the entity as its bare business id.
	Reference ReferenceMode = iota + 1
	// Full writes all declared fields of the entity.
	Full
)

func (m ReferenceMode) Valid() bool {
	return m == Reference || m == Full
}

func (m ReferenceMode) String() string {
	switch m {
	case Reference:
		return "reference"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("ReferenceMode(%d)", uint8(m))
	}
}

// ParseReferenceMode accepts the names produced by String, case-sensitively.
func ParseReferenceMode(s string) (ReferenceMode, error) {
	switch s {
	case "reference":
		return Reference, nil
	case "full":
		return Full, nil
	default:
		return 0, fmt.Errorf("%w: %q", constants.ErrInvalidMode, s)
	}
}

func (m ReferenceMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", constants.ErrInvalidMode, uint8(m))
	}
	return []byte(m.String()), nil
}

func (m *ReferenceMode) UnmarshalText(text []byte) error {
	parsed, err := ParseReferenceMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
