// Package api provides the HTTP client for the agent service.
//
// # Endpoints
//
// Chat:
//   - POST /api/chat — form-encoded turn, answered with an NDJSON event
//     stream (application/x-ndjson)
//
// History:
//   - GET    /api/chat/history      — list stored conversations
//   - GET    /api/chat/history/{id} — fetch one conversation
//   - PATCH  /api/chat/history/{id} — update metadata (title, pinned, starred)
//   - DELETE /api/chat/history/{id} — delete a conversation
//
// Files:
//   - POST   /api/upload   — multipart upload (field "images" or "files")
//   - DELETE /api/delete   — remove an uploaded file by server-side path
//   - GET    /api/file-url — resolve a server-side path to a fetchable URL
//
// Knowledge bases:
//   - GET  /api/rag/list   — list corpora with their source documents
//   - POST /api/rag/build  — index uploaded documents into a named corpus
//   - POST /api/rag/rename — rename a corpus
//   - POST /api/rag/delete — delete a corpus and its index
//
// Speech:
//   - POST /api/transcribe — multipart WAV upload (field "audio_file"),
//     answered with {"full_text": "..."}
//
// # Error Handling
//
// Failures map to two types. A *TransportError means the service never
// answered: connection refused, DNS failure, timeout, or a body broken
// mid-read. A *RemoteError is a non-2xx response; Detail carries the
// service's {"detail": "..."} explanation when the body includes one.
//
// Idempotent GETs retry transient failures with exponential backoff.
// Mutations and the chat stream are never retried: a send either runs to
// completion or settles as an error, and replaying it would duplicate the
// turn server-side.
//
// # Rate Limiting
//
// A token bucket (golang.org/x/time/rate) paces outgoing requests. Every
// attempt, including retries, waits for a token first.
package api
