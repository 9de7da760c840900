//go:build !windows

package envapply

import "github.com/rs/zerolog"

// NewApplier returns the applier for the current OS.
func NewApplier(envDir string, logger zerolog.Logger) *Applier {
	return &Applier{
		Backends: []Backend{FileBackend{Dir: envDir}},
		Logger:   logger,
	}
}
