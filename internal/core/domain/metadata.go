package domain

import "fmt"

// ValidateMetadata enforces the flat metadata contract: string keys
// mapping to scalars or flat lists of scalars, nothing nested. Stores
// reject documents that violate it.
func ValidateMetadata(metadata map[string]any) error {
	for key, value := range metadata {
		switch v := value.(type) {
		case nil, string, bool, int, int32, int64, float32, float64:
		case []string:
		case []any:
			for _, item := range v {
				switch item.(type) {
				case string, bool, int, int64, float64:
				default:
					return fmt.Errorf("%w: metadata key %q has nested list value", ErrStoreRejected, key)
				}
			}
		default:
			return fmt.Errorf("%w: metadata key %q has non-scalar value %T", ErrStoreRejected, key, value)
		}
	}
	return nil
}
