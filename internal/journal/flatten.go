package journal

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Flatten renders entry data as sorted "path=value" pairs. Nested objects
// use dotted paths and arrays use [i] indexes.
func Flatten(data map[string]any) []string {
	if len(data) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(data))
	walkValue(data, "", &pairs)
	return pairs
}

func walkValue(value any, path string, pairs *[]string) {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 {
			appendPair(path, "{}", pairs)
			return
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			walkValue(v[key], joinPath(path, key), pairs)
		}
	case []any:
		if len(v) == 0 {
			appendPair(path, "[]", pairs)
			return
		}
		for i, item := range v {
			walkValue(item, fmt.Sprintf("%s[%d]", path, i), pairs)
		}
	default:
		appendPair(path, formatPrimitive(v), pairs)
	}
}

func appendPair(path, value string, pairs *[]string) {
	if path == "" {
		*pairs = append(*pairs, value)
		return
	}
	*pairs = append(*pairs, path+"="+value)
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func formatPrimitive(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int, int64, uint64:
		return fmt.Sprintf("%d", v)
	case bool:
		return strconv.FormatBool(v)
	case string:
		if v == "" {
			return `""`
		}
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
