// Package checkpoint saves and resumes extraction progress.
//
// A checkpoint records the last listing page whose orders were all handed to
// the sync coordinator, plus the result counters so far. It is keyed by the
// date range, order type filter and storage target, so a resumed run only
// picks up a checkpoint written for the same extraction.
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: ~/.local/share/tcgsync/checkpoints/
//   - macOS: ~/Library/Application Support/tcgsync/checkpoints/
//   - Windows: %APPDATA%/tcgsync/checkpoints/
//
// Files are written through a temp file and rename and carry a version.
package checkpoint
