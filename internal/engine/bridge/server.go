// ABOUTME: gRPC server side of the engine bridge.
// ABOUTME: Each Events stream owns one engine client; Execute shares a lazy client.

package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/2389/tdsession/internal/engine"
)

// DefaultPollTimeout bounds each engine Receive so streams notice cancellation.
const DefaultPollTimeout = time.Second

// Server serves an engine factory over gRPC.
type Server struct {
	factory     engine.Factory
	logger      *slog.Logger
	pollTimeout time.Duration

	execMu     sync.Mutex
	execClient engine.Client
}

// NewServer creates a bridge server backed by factory.
func NewServer(factory engine.Factory, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		factory:     factory,
		logger:      logger.With("component", "bridge"),
		pollTimeout: DefaultPollTimeout,
	}
}

// Register attaches the service to a gRPC server.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// Events implements EngineServer.
func (s *Server) Events(stream grpc.ServerStream) error {
	client, err := s.factory()
	if err != nil {
		s.logger.Error("creating engine client", "error", err)
		return status.Errorf(codes.Unavailable, "creating engine client: %v", err)
	}
	s.logger.Info("engine stream opened")

	g, ctx := errgroup.WithContext(stream.Context())

	// Caller -> engine.
	g.Go(func() error {
		for {
			msg := new(wrapperspb.BytesValue)
			if err := stream.RecvMsg(msg); err != nil {
				if errors.Is(err, io.EOF) {
					return io.EOF
				}
				return err
			}
			if err := client.Send(msg.GetValue()); err != nil {
				return status.Errorf(codes.Internal, "engine send: %v", err)
			}
		}
	})

	// Engine -> caller.
	g.Go(func() error {
		for ctx.Err() == nil {
			data, err := client.Receive(s.pollTimeout)
			if err != nil {
				return status.Errorf(codes.Internal, "engine receive: %v", err)
			}
			if data == nil {
				continue
			}
			if err := stream.SendMsg(wrapperspb.Bytes(data)); err != nil {
				return err
			}
		}
		return nil
	})

	err = g.Wait()
	if derr := client.Destroy(); derr != nil && !errors.Is(derr, engine.ErrDestroyed) {
		s.logger.Warn("destroying engine client", "error", derr)
	}
	s.logger.Info("engine stream closed")

	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled {
		return nil
	}
	return err
}

// Execute implements EngineServer.
func (s *Server) Execute(_ context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	client, err := s.executor()
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "creating engine client: %v", err)
	}
	resp, err := client.Execute(req.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "engine execute: %v", err)
	}
	return wrapperspb.Bytes(resp), nil
}

func (s *Server) executor() (engine.Client, error) {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	if s.execClient != nil {
		return s.execClient, nil
	}
	client, err := s.factory()
	if err != nil {
		return nil, err
	}
	s.execClient = client
	return client, nil
}

// Close releases the client used for Execute calls.
func (s *Server) Close() error {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	if s.execClient == nil {
		return nil
	}
	err := s.execClient.Destroy()
	s.execClient = nil
	return err
}
