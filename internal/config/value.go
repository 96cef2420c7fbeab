package config

import (
	"fmt"
	"strconv"
)

// kind is the type of a decoded document node.
type kind int

const (
	kindNull kind = iota
	kindBool
	kindNumber
	kindString
	kindArray
	kindObject
)

func (k kind) String() string {
	switch k {
	case kindNull:
		return "null"
	case kindBool:
		return "boolean"
	case kindNumber:
		return "number"
	case kindString:
		return "string"
	case kindArray:
		return "array"
	case kindObject:
		return "object"
	default:
		return "unknown"
	}
}

// value is a syntax-neutral document node. Objects keep the order in which
// their keys first appeared, which every front end (JSON, YAML, Lua) feeds
// into the same validation code.
type value struct {
	kind    kind
	str     string // string contents, or the literal of a number
	boolean bool
	items   []value
	members []member
}

type member struct {
	key string
	val value
}

// set adds or replaces a member. A repeated key keeps its first position
// and takes the last value.
func (v *value) set(key string, val value) {
	for i := range v.members {
		if v.members[i].key == key {
			v.members[i].val = val
			return
		}
	}
	v.members = append(v.members, member{key: key, val: val})
}

func (v value) get(key string) (value, bool) {
	for _, m := range v.members {
		if m.key == key {
			return m.val, true
		}
	}
	return value{}, false
}

// empty reports whether v is null or an empty container or string.
func (v value) empty() bool {
	switch v.kind {
	case kindNull:
		return true
	case kindString:
		return v.str == ""
	case kindArray:
		return len(v.items) == 0
	case kindObject:
		return len(v.members) == 0
	default:
		return false
	}
}

// describe renders v for error messages.
func (v value) describe() string {
	switch v.kind {
	case kindNull:
		return "null"
	case kindBool:
		return strconv.FormatBool(v.boolean)
	case kindNumber:
		return v.str
	case kindString:
		return strconv.Quote(v.str)
	case kindArray:
		return fmt.Sprintf("array of %d items", len(v.items))
	default:
		return fmt.Sprintf("object with %d keys", len(v.members))
	}
}
