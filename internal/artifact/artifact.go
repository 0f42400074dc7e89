package artifact

import (
	"time"

	"github.com/parleychat/parley/internal/transcript"
)

// Saved records one attachment written to the local filesystem.
//
// Zero values:
//   - Name: "" (invalid, the attachment's display name is required)
//   - Path: "" (set on save; absolute or dir-relative local path)
//   - Size: 0 (bytes written)
//   - SavedAt: zero time (set on save)
type Saved struct {
	Name    string
	Kind    transcript.AttachmentKind
	URL     string // source URL the bytes came from
	Path    string
	Size    int64
	SavedAt time.Time
}
