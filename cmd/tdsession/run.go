// ABOUTME: The run command: starts a session, drives login and prints updates
// ABOUTME: Runs until SIGINT/SIGTERM or until the engine ends the session

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/tdsession/internal/config"
	"github.com/2389/tdsession/internal/conversation"
	"github.com/2389/tdsession/internal/login"
	"github.com/2389/tdsession/internal/metrics"
	"github.com/2389/tdsession/internal/prompt"
	"github.com/2389/tdsession/internal/session"
	"github.com/2389/tdsession/internal/sink"
	"github.com/2389/tdsession/internal/store"
	"github.com/2389/tdsession/internal/tdapi"
	"github.com/2389/tdsession/internal/tderr"
)

var (
	runLogin bool
	runToken string
	runPhone string
	runTypes []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a session and print updates as JSON lines",
	Long: `Start a session for the selected profile and print every update as one
JSON object per line on stdout until interrupted.

With --login (or a token or phone in the profile) the session authorizes,
asking on the terminal for anything not configured. Without it a session
that is not already authorized stops at the phone number prompt.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runLogin, "login", false, "authorize, prompting for missing credentials")
	runCmd.Flags().StringVar(&runToken, "token", "", "log in with this bot token")
	runCmd.Flags().StringVar(&runPhone, "phone", "", "log in with this phone number")
	runCmd.Flags().StringSliceVar(&runTypes, "type", nil, "only print updates of these types (repeatable)")
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if runToken != "" && runPhone != "" {
		return errors.New("--token and --phone are mutually exclusive")
	}

	printBanner()

	cfg, path, err := loadConfig(false)
	if err != nil {
		return err
	}

	logger, logCloser := setupLogger(cfg.Logging)
	defer logCloser.Close()

	profile, err := cfg.Resolve(profileName)
	if err != nil {
		return err
	}

	printInfo("Config", path)
	printInfo("Profile", profile.Name)
	printInfo("Data", profile.Dir)
	fmt.Fprintln(os.Stderr)

	factory, engineCloser, err := engineFactory(cfg, logger)
	if err != nil {
		return err
	}
	defer engineCloser.Close()

	opts := session.Options{
		Logger:   logger,
		Provider: prompt.New(os.Stdin, os.Stderr),
	}

	var recorder tderr.Recorder
	if cfg.Triage.Enabled {
		triage, err := store.NewSQLiteStore(cfg.TriagePath(), cfg.Triage.Driver)
		if err != nil {
			return fmt.Errorf("opening triage store: %w", err)
		}
		defer triage.Close()
		recorder = triage
		opts.Journal = triage
	}
	opts.Resolver = tderr.NewResolver(recorder, logger)

	if cfg.Metrics.Enabled {
		collectors := metrics.New()
		opts.Metrics = collectors
		stop := serveMetrics(collectors, cfg.Metrics.Addr, logger)
		defer stop()
	}

	ctrl := session.New(factory, profile.Session, opts)

	broadcaster := conversation.NewUpdateBroadcaster(logger)
	defer broadcaster.Close()
	ctrl.AddHandler(broadcaster)

	if cfg.Sink.Redis.Enabled {
		redisSink, err := newRedisSink(ctx, cfg.Sink.Redis, logger)
		if err != nil {
			return err
		}
		defer redisSink.Close()
		ctrl.AddHandler(redisSink)
	}

	if creds, ok := loginCredentials(profile.Credentials); ok {
		ctrl.Login(creds)
	}

	subCtx, cancelSub := context.WithCancel(ctx)
	defer cancelSub()
	updates, _ := broadcaster.Subscribe(subCtx, conversation.AllUpdates)

	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	logger.Info("session started", "session_id", ctrl.SessionID(), "profile", profile.Name)

	err = printUpdates(ctx, os.Stdout, updates, ctrl.Done(), typeFilter(runTypes))

	if stopErr := ctrl.Stop(); stopErr != nil {
		logger.Warn("stopping session", "error", stopErr)
	}
	if err != nil {
		return err
	}
	if reason := ctrl.Err(); reason != nil {
		return fmt.Errorf("session ended: %w", reason)
	}
	return nil
}

// loginCredentials merges flags into the profile credentials and reports
// whether a login should be requested.
func loginCredentials(creds login.Credentials) (login.Credentials, bool) {
	switch {
	case runToken != "":
		creds.Token, creds.Phone = runToken, ""
	case runPhone != "":
		creds.Token, creds.Phone = "", runPhone
	}
	return creds, runLogin || creds.Token != "" || creds.Phone != ""
}

func typeFilter(types []string) map[string]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// printUpdates writes each update as a JSON line until ctx ends, the session
// stops, or the subscription closes.
func printUpdates(ctx context.Context, out io.Writer, updates <-chan tdapi.Object, done <-chan struct{}, only map[string]bool) error {
	w := bufio.NewWriter(out)
	defer w.Flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case obj, ok := <-updates:
			if !ok {
				return nil
			}
			if only != nil && !only[obj.Type()] {
				continue
			}
			line, err := tdapi.Marshal(obj, "")
			if err != nil {
				return fmt.Errorf("encoding update: %w", err)
			}
			if _, err := w.Write(append(line, '\n')); err != nil {
				return fmt.Errorf("writing update: %w", err)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("writing update: %w", err)
			}
		}
	}
}

// serveMetrics starts the metrics endpoint and returns its shutdown func.
func serveMetrics(collectors *metrics.Collectors, addr string, logger *slog.Logger) func() {
	srv := collectors.NewServer(addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	printInfo("Metrics", "http://"+addr+"/metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func newRedisSink(ctx context.Context, cfg config.RedisSinkConfig, logger *slog.Logger) (*sink.RedisStream, error) {
	rs, err := sink.NewRedisStream(sink.RedisConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Stream:   cfg.Stream,
		MaxLen:   cfg.MaxLen,
		Types:    cfg.Types,
	}, logger)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rs.Ping(pingCtx); err != nil {
		logger.Warn("redis sink unreachable", "addr", cfg.Addr, "error", err)
	}
	printInfo("Sink", "redis://"+cfg.Addr+"/"+strconv.Itoa(cfg.DB)+" "+cfg.Stream)
	return rs, nil
}
