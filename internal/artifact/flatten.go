package artifact

import (
	"strconv"
	"strings"
)

// Flatten collapses decoded JSON into dotted-path keys. Homogeneous scalar
// arrays become one "; "-joined string; arrays holding objects recurse by
// index. Every consumer of a Bundle relies on this shape.
func Flatten(v any) map[string]string {
	out := map[string]string{}
	flattenInto(v, "", out)
	return out
}

func flattenInto(v any, prefix string, out map[string]string) {
	switch x := v.(type) {
	case map[string]any:
		for k, child := range x {
			flattenInto(child, joinKey(prefix, k), out)
		}
	case []any:
		if allScalars(x) {
			parts := make([]string, 0, len(x))
			for _, item := range x {
				parts = append(parts, scalarString(item))
			}
			out[prefix] = strings.Join(parts, "; ")
			return
		}
		for i, item := range x {
			flattenInto(item, joinKey(prefix, strconv.Itoa(i)), out)
		}
	default:
		out[prefix] = scalarString(v)
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func allScalars(items []any) bool {
	for _, it := range items {
		switch it.(type) {
		case map[string]any, []any:
			return false
		}
	}
	return true
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
