// Package modifier implements the text transforms merge tags can chain after a field, e.g.
// {|segment:content:paragraph:sentence:trim|}.
package modifier

import "strings"

// Separator joins list items when a list collapses to one string.
const Separator = "\n\n---\n\n"

// Placeholder stands in for a split that produced nothing.
const Placeholder = "No content available."

// Value is either a scalar or a list of strings.
type Value struct {
	Scalar string
	List   []string
	IsList bool
}

func Scalar(s string) Value { return Value{Scalar: s} }

func List(items ...string) Value {
	return Value{List: append([]string{}, items...), IsList: true}
}

// Empty reports whether there is nothing to transform.
func (v Value) Empty() bool {
	if v.IsList {
		return len(v.List) == 0
	}
	return v.Scalar == ""
}

// String collapses a list using Separator.
func (v Value) String() string {
	if v.IsList {
		return strings.Join(v.List, Separator)
	}
	return v.Scalar
}
