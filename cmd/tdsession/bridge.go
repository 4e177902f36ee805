// ABOUTME: The bridge command: serve the local engine over gRPC
// ABOUTME: Lets sessions on hosts without libtdjson use this host's engine

package main

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/2389/tdsession/internal/engine/bridge"
	"github.com/2389/tdsession/internal/engine/tdjson"
)

const defaultBridgeListen = "127.0.0.1:7443"

var bridgeListen string

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Engine bridge commands",
}

var bridgeServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the local engine over gRPC",
	Long: `Serve the local libtdjson engine to remote sessions. Each Events stream
owns one engine client; Execute runs stateless requests.

Point clients at it with --remote or bridge.remote.`,
	RunE: runBridgeServe,
}

func init() {
	bridgeServeCmd.Flags().StringVar(&bridgeListen, "listen", "", "address to listen on (default bridge.listen or "+defaultBridgeListen+")")
	bridgeCmd.AddCommand(bridgeServeCmd)
}

func runBridgeServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	printBanner()

	cfg, _, err := loadConfig(true)
	if err != nil {
		return err
	}
	logger, logCloser := setupLogger(cfg.Logging)
	defer logCloser.Close()

	addr := bridgeListen
	if addr == "" {
		addr = cfg.Bridge.Listen
	}
	if addr == "" {
		addr = defaultBridgeListen
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	server := bridge.NewServer(tdjson.Factory(), logger)
	defer server.Close()

	gs := grpc.NewServer()
	server.Register(gs)

	printInfo("Bridge", lis.Addr().String())
	logger.Info("bridge serving", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- gs.Serve(lis) }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serving bridge: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("bridge shutting down")
	stopped := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		gs.Stop()
	}
	return nil
}
