package scope

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/bizref/bizref/pkg/constants"
	"github.com/bizref/bizref/pkg/models"
)

// FieldTag is the parsed form of a field's json and ref tags.
//
//	Customer *Customer `json:"customer" ref:"full"`
//	Owner    *User     `json:"owner" ref:"reference,unwrapped,prefix=owner_"`
type FieldTag struct {
	// Name is the json property name, empty when the tag does not set one.
	Name      string
	OmitEmpty bool
	// Skip is set by `json:"-"`.
	Skip bool

	// Mode is zero when the field carries no scope annotation.
	Mode      models.ReferenceMode
	Unwrapped bool
	Prefix    string
	Suffix    string
}

// Rename applies the prefix and suffix of an unwrapped field to a member name.
func (t FieldTag) Rename(name string) string {
	return t.Prefix + name + t.Suffix
}

// ParseTag parses the json and ref tags of sf.
func ParseTag(sf reflect.StructField) (FieldTag, error) {
	var tag FieldTag

	if jsonTag, ok := sf.Tag.Lookup(constants.JSONTag); ok {
		if jsonTag == "-" {
			tag.Skip = true
			return tag, nil
		}
		name, opts, _ := strings.Cut(jsonTag, ",")
		tag.Name = name
		for _, opt := range strings.Split(opts, ",") {
			if opt == "omitempty" {
				tag.OmitEmpty = true
			}
		}
	}

	refTag, ok := sf.Tag.Lookup(constants.RefTag)
	if !ok {
		return tag, nil
	}
	mode, opts, _ := strings.Cut(refTag, ",")
	if mode != "" {
		m, err := models.ParseReferenceMode(mode)
		if err != nil {
			return tag, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		tag.Mode = m
	}
	if opts == "" {
		return tag, nil
	}
	for _, opt := range strings.Split(opts, ",") {
		key, value, _ := strings.Cut(opt, "=")
		switch key {
		case "unwrapped":
			tag.Unwrapped = true
		case "prefix":
			tag.Prefix = value
		case "suffix":
			tag.Suffix = value
		default:
			return tag, fmt.Errorf("field %s: unknown %s tag option %q", sf.Name, constants.RefTag, opt)
		}
	}
	return tag, nil
}
