// Package artifact saves generated files from assistant replies to the
// local filesystem. The backend's tools write their outputs (charts,
// reports, audio) into server-side storage; a message references them as
// attachments with resolved URLs. This package downloads those
// attachments on request and lays them down under a target directory,
// never overwriting an existing file.
package artifact
