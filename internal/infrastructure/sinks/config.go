package sinks

// Config is a key-value map for sink-specific configuration.
// The backend passes it when creating a sink; implementations interpret it.
type Config map[string]any

// String returns the string value for key, or "" when absent or not a string.
func (c Config) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Int returns the int value for key, or def when absent.
func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func (c Config) Bool(key string) bool {
	b, _ := c[key].(bool)
	return b
}
