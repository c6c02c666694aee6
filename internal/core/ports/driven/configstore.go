package driven

// ConfigStore persists key/value configuration as a TOML document.
// Nested tables are addressed with dot-notation keys
// ("cache.max_size").
type ConfigStore interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetStringSlice(key string) []string
	Set(key string, value any) error
	Save() error
}
