// Package tags resolves friendly metadata field names into exiftool tag
// identifiers and holds the per-file tag set handed to the writer.
package tags

import (
	"sort"
	"strconv"
	"strings"
)

// Key is an exiftool tag identifier such as GPS:GPSLatitude. Namespace may be
// empty for bare tag names.
type Key struct {
	Namespace string
	Field     string
}

// ParseKey splits "Namespace:Field" on the first separator. Names without a
// separator yield a bare key and ok=false.
func ParseKey(s string) (Key, bool) {
	ns, field, ok := strings.Cut(s, ":")
	if !ok {
		return Key{Field: s}, false
	}
	return Key{Namespace: ns, Field: field}, true
}

// MustKey is ParseKey for identifiers known at compile time.
func MustKey(s string) Key {
	k, _ := ParseKey(s)
	return k
}

func (k Key) String() string {
	if k.Namespace == "" {
		return k.Field
	}
	return k.Namespace + ":" + k.Field
}

// Value is either a scalar or an ordered list of scalars. Lists are written
// as repeated arguments so exiftool accumulates a multi-value field.
type Value struct {
	items []string
	list  bool
}

// Scalar builds a single-valued Value.
func Scalar(s string) Value { return Value{items: []string{s}} }

// List builds a multi-valued Value.
func List(items ...string) Value {
	return Value{items: append([]string(nil), items...), list: true}
}

// IsList reports whether v is multi-valued.
func (v Value) IsList() bool { return v.list }

// Empty reports whether v is "" or an empty list.
func (v Value) Empty() bool {
	if v.list {
		return len(v.items) == 0
	}
	return len(v.items) == 0 || v.items[0] == ""
}

// Items returns the scalar values in order.
func (v Value) Items() []string { return append([]string(nil), v.items...) }

// String returns a scalar value, or list items joined with ", ".
func (v Value) String() string { return strings.Join(v.items, ", ") }

// Set maps tag identifiers to values; later writes win.
type Set struct {
	m map[Key]Value
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{m: make(map[Key]Value)}
}

// Put stores v under k, replacing any previous value.
func (s *Set) Put(k Key, v Value) { s.m[k] = v }

// PutAll stores v under every key in ks.
func (s *Set) PutAll(ks []Key, v Value) {
	for _, k := range ks {
		s.m[k] = v
	}
}

// Get returns the value stored under k.
func (s *Set) Get(k Key) (Value, bool) {
	v, ok := s.m[k]
	return v, ok
}

// Delete removes k.
func (s *Set) Delete(k Key) { delete(s.m, k) }

// Len returns the number of entries.
func (s *Set) Len() int { return len(s.m) }

// Keys returns all keys sorted by their string form.
func (s *Set) Keys() []Key {
	keys := make([]Key, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Prune removes empty values and every denied key. See denied for how
// denylist entries match.
func (s *Set) Prune(denylist []string) {
	for k, v := range s.m {
		if v.Empty() || denied(k.String(), denylist) {
			delete(s.m, k)
		}
	}
}

// denied reports whether tag matches the denylist, ignoring case. Entries
// with a group ("File:") are prefixes of the full identifier. Bare entries
// ("FileName") name a tag that is denied in every group, and with no group.
func denied(tag string, denylist []string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	field := tag
	if i := strings.LastIndex(tag, ":"); i >= 0 {
		field = tag[i+1:]
	}
	field = strings.TrimRight(strings.TrimSpace(field), "#")
	for _, entry := range denylist {
		entry = strings.ToLower(entry)
		if strings.Contains(entry, ":") {
			if strings.HasPrefix(tag, entry) {
				return true
			}
		} else if field == entry {
			return true
		}
	}
	return false
}

// valueOf converts a decoded JSON value into a Value. Maps and nulls are not
// representable and return ok=false.
func valueOf(raw any) (Value, bool) {
	switch t := raw.(type) {
	case nil:
		return Value{}, false
	case []any:
		items := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := scalarString(it)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		return List(items...), true
	case []string:
		return List(t...), true
	default:
		s, ok := scalarString(raw)
		if !ok {
			return Value{}, false
		}
		return Scalar(s), true
	}
}

func scalarString(raw any) (string, bool) {
	switch t := raw.(type) {
	case string:
		return t, true
	case float64:
		return formatFloat(t), true
	case int:
		return strconv.Itoa(t), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
