package lspsession

import "github.com/Galarius/opencl-language-server/internal/jsonrpc"

// dig walks a chain of nested JSON objects (as decoded by encoding/json into
// map[string]interface{}) and returns the value at the end of path, if every
// intermediate step is itself an object.
func dig(body jsonrpc.Body, path ...string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(body)
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func boolAt(body jsonrpc.Body, path ...string) bool {
	v, ok := dig(body, path...)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func stringAt(body jsonrpc.Body, path ...string) (string, bool) {
	v, ok := dig(body, path...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
