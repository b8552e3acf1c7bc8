package jsonvalue

import "iter"

// Visitor receives every value of a document in depth-first order.
// Returning false stops the traversal.
type Visitor func(v Value) bool

// Walk visits v and then its children: object members in source order, array
// elements in index order. It reports whether the traversal ran to completion.
func Walk(v Value, visit Visitor) bool {
	if v == nil {
		return true
	}
	if !visit(v) {
		return false
	}
	switch t := v.(type) {
	case Array:
		for _, elem := range t {
			if !Walk(elem, visit) {
				return false
			}
		}
	case Object:
		for _, m := range t {
			if !Walk(m.Value, visit) {
				return false
			}
		}
	}
	return true
}

// Strings yields every string value in traversal order. Object keys are not yielded.
func Strings(v Value) iter.Seq[string] {
	return func(yield func(string) bool) {
		Walk(v, func(v Value) bool {
			if s, ok := v.(String); ok {
				return yield(string(s))
			}
			return true
		})
	}
}

// Lookup follows a path of object keys (string) and array indexes (int).
func Lookup(v Value, path ...any) (Value, bool) {
	cur := v
	for _, step := range path {
		switch key := step.(type) {
		case string:
			obj, ok := cur.(Object)
			if !ok {
				return nil, false
			}
			if cur, ok = obj.Get(key); !ok {
				return nil, false
			}
		case int:
			arr, ok := cur.(Array)
			if !ok || key < 0 || key >= len(arr) {
				return nil, false
			}
			cur = arr[key]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// LookupString is Lookup restricted to string leaves.
func LookupString(v Value, path ...any) (string, bool) {
	found, ok := Lookup(v, path...)
	if !ok {
		return "", false
	}
	s, ok := found.(String)
	return string(s), ok
}

// LookupNumber is Lookup restricted to number leaves.
func LookupNumber(v Value, path ...any) (Number, bool) {
	found, ok := Lookup(v, path...)
	if !ok {
		return "", false
	}
	n, ok := found.(Number)
	return n, ok
}
