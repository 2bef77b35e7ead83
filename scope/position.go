package scope

import (
	"reflect"
	"strings"
)

// Position is one step of a live document walk.
//
// Value is the container currently being written or read (a struct, map or
// slice), Name is the member of that container being visited (empty for array
// elements and at the document root) and Parent is the position at which the
// container itself was reached. A Position lives for exactly one walk.
type Position struct {
	Value  any
	Name   string
	Parent *Position
}

// Root returns the position of a document's top-level value.
func Root() *Position {
	return &Position{}
}

// Member returns the position of member name inside container, which was
// reached at p.
func (p *Position) Member(container any, name string) *Position {
	return &Position{Value: container, Name: name, Parent: p}
}

// Element returns the position of an element of array container, which was
// reached at p.
func (p *Position) Element(container any) *Position {
	return &Position{Value: container, Parent: p}
}

// Type returns the runtime type of Value with pointers stripped, or nil.
func (p *Position) Type() reflect.Type {
	if p == nil || p.Value == nil {
		return nil
	}
	return indirect(reflect.TypeOf(p.Value))
}

// Depth counts the positions from p up to the root, root excluded.
func (p *Position) Depth() int {
	depth := 0
	for cur := p; cur != nil && cur.Parent != nil; cur = cur.Parent {
		depth++
	}
	return depth
}

// Path renders the chain of member names from the root, e.g. "$.order.lines[].product".
func (p *Position) Path() string {
	var parts []string
	for cur := p; cur != nil && cur.Parent != nil; cur = cur.Parent {
		if cur.Name == "" {
			parts = append(parts, "[]")
		} else {
			parts = append(parts, "."+cur.Name)
		}
	}

	var b strings.Builder
	b.WriteString("$")
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteString(parts[i])
	}
	return b.String()
}
