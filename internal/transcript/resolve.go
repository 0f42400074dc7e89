package transcript

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// outputPathRe matches the first generated-artifact token inside a tool's
// free-text result. Tools write paths relative to their shared output
// directory, e.g. "输出路径：output/2025-08-24/report.pdf"; Windows-hosted
// tools emit backslashes.
var outputPathRe = regexp.MustCompile(`output[/\\][0-9A-Za-z_\-./\\]+`)

// staticOutputPrefix is the server route serving generated artifacts.
const staticOutputPrefix = "/static/output/"

// imageExtensions render inline; audioExtensions are playable files.
var (
	imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}
	audioExtensions = map[string]bool{".mp3": true, ".wav": true}
)

// KindForName classifies an attachment by file extension.
func KindForName(name string) AttachmentKind {
	ext := strings.ToLower(path.Ext(name))
	switch {
	case imageExtensions[ext]:
		return AttachmentImage
	case audioExtensions[ext]:
		return AttachmentAudio
	default:
		return AttachmentFile
	}
}

// ResolveOutput extracts the single output/<path> token from a tool's
// free-text result and resolves it into an attachment with a fetchable
// static URL. Returns nil when the text references no generated artifact.
//
// The relative path is percent-encoded per segment, so names with reserved
// characters survive the round trip through the static file route.
func ResolveOutput(text, baseURL string) *Attachment {
	match := outputPathRe.FindString(text)
	if match == "" {
		return nil
	}

	rel := strings.ReplaceAll(match, `\`, "/")
	rel = strings.TrimPrefix(rel, "output/")
	rel = strings.Trim(rel, "./")
	if rel == "" {
		return nil
	}

	name := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		name = rel[i+1:]
	}
	if name == "" {
		return nil
	}

	return &Attachment{
		Kind: KindForName(name),
		URL:  strings.TrimSuffix(baseURL, "/") + staticOutputPrefix + encodePath(rel),
		Name: name,
	}
}

// encodePath percent-encodes each path segment, keeping the separators.
func encodePath(rel string) string {
	segs := strings.Split(rel, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
