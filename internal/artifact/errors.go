package artifact

import "errors"

var (
	// ErrNoArtifacts is returned when the message has no attachments to
	// save.
	ErrNoArtifacts = errors.New("no artifacts to save")

	// ErrInvalidFilename is returned when an attachment's display name
	// cannot be used as a local file name.
	ErrInvalidFilename = errors.New("invalid filename")
)

// ValidateFilename checks if the filename is safe to create locally.
// Returns ErrInvalidFilename if validation fails.
//
// Validation rules:
//   - Must not be empty
//   - Must not exceed 255 characters
//   - Must not contain path separators (/, \)
//   - Must not contain null bytes
//   - Must not be "." or ".." (path traversal)
func ValidateFilename(name string) error {
	if name == "" {
		return ErrInvalidFilename
	}
	if len(name) > 255 {
		return ErrInvalidFilename
	}
	// Prevent path traversal
	for _, c := range name {
		if c == '/' || c == '\\' || c == '\x00' {
			return ErrInvalidFilename
		}
	}
	if name == "." || name == ".." {
		return ErrInvalidFilename
	}
	return nil
}
