package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"

	"github.com/bizref/bizref/pkg/constants"
)

// ID is a business identifier with its owning entity type erased.
//
// It is the form an identifier takes while it is read off the wire, before the
// decoder knows which entity type it is resolving. Its canonical text form is the
// signed decimal representation of the integer.
type ID int64

// ParseError is returned when text is not a signed decimal fitting 64 bits.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %q", constants.ErrParse, e.Text)
	}
	return fmt.Sprintf("%v: %q: %v", constants.ErrParse, e.Text, e.Err)
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{constants.ErrParse}
	}
	return []error{constants.ErrParse, e.Err}
}

// ParseID parses a signed decimal. Any text strconv accepts in base 10 is valid,
// leading zeros included; String always yields the canonical form.
func ParseID(text string) (ID, error) {
	if len(text) == 0 {
		return 0, &ParseError{Text: text}
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok {
			err = numErr.Err
		}
		return 0, &ParseError{Text: text, Err: err}
	}
	return ID(v), nil
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Compare returns -1, 0 or +1 depending on the numeric order of id and other.
func (id ID) Compare(other ID) int {
	switch {
	case id < other:
		return -1
	case id > other:
		return 1
	default:
		return 0
	}
}

// BusinessID is an identifier phantom-typed to its owning entity type T.
//
// The type parameter only exists at compile time; the wire form never carries it.
type BusinessID[T any] int64

// ParseBusinessID parses the canonical text form of an identifier owned by T.
func ParseBusinessID[T any](text string) (BusinessID[T], error) {
	id, err := ParseID(text)
	if err != nil {
		return 0, err
	}
	return BusinessID[T](id), nil
}

// ID erases the owning type.
func (b BusinessID[T]) ID() ID { return ID(b) }

func (b BusinessID[T]) String() string { return ID(b).String() }

// Compare orders identifiers by numeric value.
func (b BusinessID[T]) Compare(other BusinessID[T]) int { return ID(b).Compare(ID(other)) }

func (b BusinessID[T]) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *BusinessID[T]) UnmarshalText(text []byte) error {
	id, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*b = BusinessID[T](id)
	return nil
}

// MarshalJSON writes the identifier as a quoted decimal string so that values
// outside the float64-exact range survive JavaScript consumers.
func (b BusinessID[T]) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, b.String()), nil
}

// UnmarshalJSON accepts both the quoted form and a bare JSON number.
func (b *BusinessID[T]) UnmarshalJSON(data []byte) error {
	text := string(data)
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return &ParseError{Text: text, Err: err}
		}
		text = unquoted
	}
	return b.UnmarshalText([]byte(text))
}

func (b BusinessID[T]) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(b.String())
}

func (b *BusinessID[T]) UnmarshalCBOR(data []byte) error {
	var text string
	if err := cbor.Unmarshal(data, &text); err != nil {
		return err
	}
	return b.UnmarshalText([]byte(text))
}

func (b BusinessID[T]) Value() (driver.Value, error) {
	return int64(b), nil
}

func (b *BusinessID[T]) Scan(value any) error {
	switch v := value.(type) {
	case int64:
		*b = BusinessID[T](v)
	case []byte:
		return b.UnmarshalText(v)
	case string:
		return b.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into business id", value)
	}
	return nil
}

func (BusinessID[T]) GormDataType() string { return "bigint" }
