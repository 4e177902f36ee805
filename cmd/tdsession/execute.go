// ABOUTME: The execute command: one stateless engine request
// ABOUTME: Decodes a JSON request, runs it synchronously and prints the response

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/2389/tdsession/internal/session"
	"github.com/2389/tdsession/internal/tdapi"
	"github.com/2389/tdsession/internal/tderr"
)

var executeCmd = &cobra.Command{
	Use:   "execute <json>",
	Short: "Run one stateless request and print the response",
	Long: `Run a request that needs no session, such as getTextEntities or
setLogVerbosityLevel, and print the engine's response as JSON.

  tdsession execute '{"@type":"getTextEntities","text":"hi @user"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runExecute,
}

func runExecute(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(true)
	if err != nil {
		return err
	}

	logger, logCloser := setupLogger(cfg.Logging)
	defer logCloser.Close()

	registry := tdapi.NewRegistry()
	req, err := registry.DecodeBytes([]byte(args[0]))
	if err != nil {
		return fmt.Errorf("parsing request: %w", err)
	}

	factory, engineCloser, err := engineFactory(cfg, logger)
	if err != nil {
		return err
	}
	defer engineCloser.Close()

	ctrl := session.New(factory, session.Config{}, session.Options{
		Logger:   logger,
		Registry: registry,
	})

	resp, err := ctrl.Execute(req)
	if err != nil {
		var engineErr *tderr.Error
		if errors.As(err, &engineErr) {
			return fmt.Errorf("engine error %d: %s", engineErr.Code, engineErr.Message)
		}
		return err
	}

	out, err := tdapi.Marshal(resp, "")
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
