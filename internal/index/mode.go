package index

import (
	"log/slog"
	"os"
	"path/filepath"
)

// StorageMode selects whether a collection survives process restarts.
// It is resolved once at startup and never re-evaluated mid-run, so an
// ingestion in progress cannot switch persistence modes.
type StorageMode int

const (
	// ModeEphemeral keeps entries in memory only. The collection is rebuilt
	// from scratch once per process lifetime.
	ModeEphemeral StorageMode = iota
	// ModeDurable persists entries to a named sqlite collection under the
	// data root and reloads them on restart.
	ModeDurable
)

func (m StorageMode) String() string {
	if m == ModeDurable {
		return "durable"
	}
	return "ephemeral"
}

// ResolveMode probes the data root for writable durable storage. A host
// without it (read-only filesystem, scratch container) gets ModeEphemeral.
func ResolveMode(dataRoot string, forceEphemeral bool) StorageMode {
	if forceEphemeral || dataRoot == "" {
		return ModeEphemeral
	}

	if err := os.MkdirAll(dataRoot, 0o750); err != nil {
		slog.Warn("data root not writable, falling back to ephemeral index", "path", dataRoot, "error", err)
		return ModeEphemeral
	}

	probe := filepath.Join(dataRoot, ".write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		slog.Warn("data root not writable, falling back to ephemeral index", "path", dataRoot, "error", err)
		return ModeEphemeral
	}
	_ = os.Remove(probe)

	return ModeDurable
}
