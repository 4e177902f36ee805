// ABOUTME: Engine selection for CLI commands
// ABOUTME: Local libtdjson by default, a bridge server when a remote is configured

package main

import (
	"io"
	"log/slog"

	"github.com/2389/tdsession/internal/config"
	"github.com/2389/tdsession/internal/engine"
	"github.com/2389/tdsession/internal/engine/bridge"
	"github.com/2389/tdsession/internal/engine/tdjson"
)

// engineFactory returns the factory commands create engine clients with.
// --remote wins over bridge.remote; without either the local engine is used.
func engineFactory(cfg *config.Config, logger *slog.Logger) (engine.Factory, io.Closer, error) {
	target := remoteAddr
	if target == "" {
		target = cfg.Bridge.Remote
	}
	if target == "" {
		return tdjson.Factory(), io.NopCloser(nil), nil
	}

	remote, err := bridge.Dial(target, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("using remote engine", "target", target)
	return remote.Factory(), remote, nil
}
