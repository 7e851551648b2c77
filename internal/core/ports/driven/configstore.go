package driven

// ConfigStore provides read access to application configuration.
// Scribe's configuration is hand-edited by the user; the application
// only ever reads it. Keys use dot notation ("gmail.token"), with
// nested structures flattened by the implementation.
type ConfigStore interface {
	// Get returns the raw value for a key and whether it exists.
	Get(key string) (any, bool)

	// GetString returns the string at key, or "" when the key is
	// absent or holds another type.
	GetString(key string) string

	// GetInt returns the integer at key, or 0 when absent or mistyped.
	GetInt(key string) int

	// GetBool returns the boolean at key, or false when absent or
	// mistyped.
	GetBool(key string) bool

	// GetStringSlice returns the string elements of the list at key,
	// or nil when the key is absent or not a list.
	GetStringSlice(key string) []string

	// Reload re-reads the configuration from its backing source,
	// picking up edits made since the last load.
	Reload() error

	// Path returns the location of the backing configuration source.
	Path() string
}
