package entity

import (
	"maps"
	"slices"
)

// Fields is the open, category-specific field map. A nil value serializes as JSON null.
type Fields map[string]*string

// Str returns a pointer to s, for building Fields literals.
func Str(s string) *string { return &s }

// Clone returns a deep copy so stages never share value pointers.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		if v != nil {
			out[k] = Str(*v)
		} else {
			out[k] = nil
		}
	}
	return out
}

// EnsureKeys adds every missing key as null.
func (f Fields) EnsureKeys(keys ...string) {
	for _, k := range keys {
		if _, ok := f[k]; !ok {
			f[k] = nil
		}
	}
}

// Value returns the string value of key and whether it is non-null.
func (f Fields) Value(key string) (string, bool) {
	v, ok := f[key]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Keys returns the keys in sorted order.
func (f Fields) Keys() []string {
	return slices.Sorted(maps.Keys(f))
}

// NonNull counts fields carrying a value.
func (f Fields) NonNull() int {
	n := 0
	for _, v := range f {
		if v != nil {
			n++
		}
	}
	return n
}
