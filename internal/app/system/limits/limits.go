// internal/app/system/limits/limits.go
package limits

// Request body size limits.
const (
	// MaxJSONBody bounds every JSON request body on the groups API. The
	// largest legitimate body is a settings patch with a 2000-character
	// description or a reorder list for a long task list.
	MaxJSONBody = 256 << 10 // 256 KB
)
