package internal

import "fmt"

// Flatten collapses a nested JSON-like map into a single-level map whose
// keys are dotted paths ("repository.full_name"). Array elements get
// indexed keys ("commits[0].id") and the array itself stays reachable
// under both the plain path and a "[]" suffixed alias.
func Flatten(data map[string]interface{}) map[string]interface{} {
	flat := make(map[string]interface{}, len(data))
	for key, value := range data {
		walk(flat, key, value)
	}
	return flat
}

func walk(flat map[string]interface{}, path string, value interface{}) {
	switch typed := value.(type) {
	case map[string]interface{}:
		for key, child := range typed {
			walk(flat, path+"."+key, child)
		}
	case []interface{}:
		flat[path] = typed
		flat[path+"[]"] = typed
		for i, child := range typed {
			walk(flat, fmt.Sprintf("%s[%d]", path, i), child)
		}
	default:
		flat[path] = value
	}
}
