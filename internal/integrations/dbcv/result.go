package dbcv

import "errors"

var errInvalidJSON = errors.New("invalid JSON response from the MCP service")

func contentOf(body map[string]any) any {
	if content, ok := body["content"].([]any); ok {
		return content
	}
	return []any{}
}

// isError accepts both the snake_case and the MCP camelCase spelling.
func isError(body map[string]any) bool {
	for _, key := range []string{"is_error", "isError"} {
		if v, ok := body[key].(bool); ok {
			return v
		}
	}
	return false
}
