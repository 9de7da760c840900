package version

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"hudo/internal/config"
)

// ErrVersionUnavailable reports that remote discovery failed. The resolver
// recovers from it with the static fallback whenever one exists.
var ErrVersionUnavailable = errors.New("version: remote version unavailable")

// Origin names where a resolved version came from.
type Origin string

const (
	OriginLock     Origin = "lock"
	OriginRemote   Origin = "remote"
	OriginCache    Origin = "cache"
	OriginFallback Origin = "fallback"
)

// Target describes how to resolve one tool's version.
type Target struct {
	ID       string
	Source   Source // nil means no remote discovery
	Fallback string
}

// Resolution is the outcome of a version lookup.
type Resolution struct {
	Version string
	Origin  Origin
	// Remote holds the discovery error when Origin is OriginFallback.
	Remote error
}

// Resolver resolves tool versions: config lock, then the remote source
// (memoised for the lifetime of the Resolver), then the static fallback.
type Resolver struct {
	cache  *lru.Cache[string, string]
	logger zerolog.Logger
}

// NewResolver returns a Resolver with an empty cache.
func NewResolver(logger zerolog.Logger) *Resolver {
	cache, err := lru.New[string, string](64)
	if err != nil {
		panic(err)
	}
	return &Resolver{cache: cache, logger: logger}
}

// Resolve picks the version to install for t. A lock in cfg is returned
// verbatim without any network access.
func (r *Resolver) Resolve(ctx context.Context, t Target, cfg config.Config) (Resolution, error) {
	if locked, ok := cfg.Lock(t.ID); ok {
		return Resolution{Version: locked, Origin: OriginLock}, nil
	}
	if cached, ok := r.cache.Get(t.ID); ok {
		return Resolution{Version: cached, Origin: OriginCache}, nil
	}

	if t.Source == nil {
		if t.Fallback == "" {
			return Resolution{}, fmt.Errorf("%w: %s has no remote source or default", ErrVersionUnavailable, t.ID)
		}
		return Resolution{Version: t.Fallback, Origin: OriginFallback}, nil
	}

	latest, err := t.Source.Latest(ctx)
	if err == nil {
		r.cache.Add(t.ID, latest)
		r.logger.Debug().Str("tool", t.ID).Str("version", latest).Msg("resolved remote version")
		return Resolution{Version: latest, Origin: OriginRemote}, nil
	}
	remoteErr := fmt.Errorf("%w: %s: %v", ErrVersionUnavailable, t.ID, err)
	if t.Fallback == "" {
		return Resolution{}, remoteErr
	}
	r.logger.Warn().Err(remoteErr).Str("tool", t.ID).Str("fallback", t.Fallback).Msg("using fallback version")
	return Resolution{Version: t.Fallback, Origin: OriginFallback, Remote: remoteErr}, nil
}
