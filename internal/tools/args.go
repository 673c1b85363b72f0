package tools

import (
	"fmt"
	"strconv"
)

// Args is the JSON-shaped argument object of one dispatched operation.
type Args map[string]interface{}

// String returns a string argument or the fallback when absent.
func (a Args) String(key, fallback string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return fallback
}

// Int returns an integer argument, tolerating the float64 and string forms
// JSON decoding produces.
func (a Args) Int(key string, fallback int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// Bool returns a boolean argument or the fallback when absent.
func (a Args) Bool(key string, fallback bool) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return fallback
}

// RequireString returns a string argument or an error naming the missing key.
func (a Args) RequireString(key string) (string, error) {
	v, ok := a[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing required argument: %s", key)
	}
	return v, nil
}

// RequireInt returns an integer argument or an error naming the missing key.
func (a Args) RequireInt(key string) (int, error) {
	if _, ok := a[key]; !ok {
		return 0, fmt.Errorf("missing required argument: %s", key)
	}
	n := a.Int(key, -1)
	if n < 0 {
		return 0, fmt.Errorf("argument %s must be a non-negative integer", key)
	}
	return n, nil
}
