package engine

import (
	"context"
	"errors"

	"hudo/internal/elevate"
	"hudo/internal/fetch"
	"hudo/internal/installer"
	"hudo/internal/version"
)

var (
	// ErrAlreadyManaged marks an install request that found the same version
	// already recorded. It is reported as a successful no-op.
	ErrAlreadyManaged = errors.New("engine: already installed by hudo")
	// ErrExternallyManaged marks a tool found on the system without a hudo
	// record. hudo leaves it alone unless told to take it over.
	ErrExternallyManaged = errors.New("engine: installed outside hudo")
	// ErrPrerequisiteFailed is reported for tools skipped because a
	// prerequisite in the same batch failed.
	ErrPrerequisiteFailed = errors.New("engine: prerequisite failed")
	// ErrNotManaged is returned when an operation needs a hudo record and
	// there is none.
	ErrNotManaged = errors.New("engine: not installed by hudo")
)

// Kind is the stable classification of a pipeline result.
type Kind string

const (
	KindOK                 Kind = "ok"
	KindAlreadyManaged     Kind = "already-managed"
	KindExternal           Kind = "external"
	KindNotManaged         Kind = "not-managed"
	KindUnknownTool        Kind = "unknown-tool"
	KindUnsupported        Kind = "unsupported-platform"
	KindVersionUnavailable Kind = "version-unavailable"
	KindDownloadFailed     Kind = "download-failed"
	KindIntegrity          Kind = "integrity-mismatch"
	KindExtractFailed      Kind = "extract-failed"
	KindConfigureFailed    Kind = "configure-failed"
	KindElevationDenied    Kind = "elevation-denied"
	KindVerifyTimeout      Kind = "verification-timeout"
	KindPrerequisite       Kind = "prerequisite-failed"
	KindCanceled           Kind = "canceled"
	KindFailed             Kind = "failed"
)

// Classify maps an error from any pipeline stage to its Kind. Elevation
// errors are checked before configure failures because they arrive wrapped
// in one.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrAlreadyManaged):
		return KindAlreadyManaged
	case errors.Is(err, ErrExternallyManaged):
		return KindExternal
	case errors.Is(err, ErrNotManaged):
		return KindNotManaged
	case errors.Is(err, ErrPrerequisiteFailed):
		return KindPrerequisite
	case errors.Is(err, installer.ErrUnknownTool):
		return KindUnknownTool
	case errors.Is(err, installer.ErrUnsupportedPlatform):
		return KindUnsupported
	case errors.Is(err, elevate.ErrElevationDenied):
		return KindElevationDenied
	case errors.Is(err, elevate.ErrElevationVerificationTimeout):
		return KindVerifyTimeout
	case errors.Is(err, installer.ErrConfigureFailed):
		return KindConfigureFailed
	case errors.Is(err, fetch.ErrIntegrityMismatch):
		return KindIntegrity
	case errors.Is(err, fetch.ErrExtractFailed):
		return KindExtractFailed
	case errors.Is(err, fetch.ErrDownloadFailed):
		return KindDownloadFailed
	case errors.Is(err, version.ErrVersionUnavailable):
		return KindVersionUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindFailed
	}
}

// Fatal reports whether a kind counts as a failure for exit status.
func (k Kind) Fatal() bool {
	switch k {
	case KindOK, KindAlreadyManaged, KindExternal:
		return false
	default:
		return true
	}
}

// Guidance returns what the user can do about a result of kind k.
func Guidance(k Kind) []string {
	switch k {
	case KindExternal:
		return []string{
			"hudo found this tool installed by something else and left it untouched",
			"rerun with --takeover to install a hudo-managed copy alongside it",
		}
	case KindNotManaged:
		return []string{"hudo has no record of this tool; run `hudo list --probe` to see what is installed"}
	case KindUnknownTool:
		return []string{"run `hudo list --all` for the tools hudo knows about"}
	case KindUnsupported:
		return []string{"this tool has no build for the current OS/architecture"}
	case KindVersionUnavailable:
		return []string{"pin a version with `hudo config set versions.<tool> <version>`"}
	case KindDownloadFailed:
		return []string{
			"check network access, then rerun the same command",
			"a mirror can be set with `hudo config set mirrors.<tool> <url>`",
		}
	case KindIntegrity:
		return []string{"the download did not match its checksum and was discarded; rerun to fetch it again"}
	case KindExtractFailed:
		return []string{"the archive was unusable and has been removed from the cache; rerun to download it again"}
	case KindConfigureFailed:
		return []string{
			"the tool is installed and recorded but not configured",
			"rerun `hudo install <tool>` to retry configuration without downloading again",
		}
	case KindElevationDenied:
		return []string{
			"administrator approval was declined, so the service step did not run",
			"rerun and accept the prompt; hudo does not retry on its own",
		}
	case KindVerifyTimeout:
		return []string{
			"the privileged step ran but the service never reached the expected state",
			"check the service in the OS service manager, then rerun `hudo install <tool>`",
			"`hudo config set elevation.timeout 60s` allows a slower machine more time",
		}
	case KindPrerequisite:
		return []string{"fix the failed prerequisite first; this tool was not attempted"}
	default:
		return nil
	}
}
