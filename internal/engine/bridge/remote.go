// ABOUTME: gRPC client side of the engine bridge, implementing engine.Client.
// ABOUTME: A background pump turns the event stream into timed Receive calls.

package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/2389/tdsession/internal/engine"
)

// Remote creates engine clients that live on a bridge server.
type Remote struct {
	conn   grpc.ClientConnInterface
	owned  *grpc.ClientConn
	logger *slog.Logger
}

// NewRemote wraps an established connection to a bridge server.
func NewRemote(conn grpc.ClientConnInterface, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{conn: conn, logger: logger.With("component", "bridge")}
}

// Dial connects to the bridge server at target. Without options the
// connection is plaintext.
func Dial(target string, logger *slog.Logger, opts ...grpc.DialOption) (*Remote, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to bridge %s: %w", target, err)
	}
	r := NewRemote(conn, logger)
	r.owned = conn
	return r, nil
}

// Close closes the connection if Dial opened it.
func (r *Remote) Close() error {
	if r.owned == nil {
		return nil
	}
	return r.owned.Close()
}

// Factory returns an engine.Factory that opens one Events stream per client.
func (r *Remote) Factory() engine.Factory {
	return r.Open
}

// Open starts a new remote engine client.
func (r *Remote) Open() (engine.Client, error) {
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := r.conn.NewStream(ctx, &serviceDesc.Streams[0], eventsMethod)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening engine stream: %w", err)
	}

	c := &remoteClient{
		conn:   r.conn,
		stream: stream,
		cancel: cancel,
		events: make(chan []byte, 256),
		done:   make(chan struct{}),
		logger: r.logger,
	}
	go c.pump()
	return c, nil
}

type remoteClient struct {
	conn   grpc.ClientConnInterface
	stream grpc.ClientStream
	cancel context.CancelFunc
	logger *slog.Logger

	sendMu sync.Mutex
	events chan []byte

	done    chan struct{} // closed when pump exits
	pumpErr error         // valid after done is closed

	destroyOnce sync.Once
	destroyed   atomic.Bool
}

func (c *remoteClient) pump() {
	defer close(c.done)
	for {
		msg := new(wrapperspb.BytesValue)
		if err := c.stream.RecvMsg(msg); err != nil {
			if !errors.Is(err, io.EOF) {
				c.pumpErr = err
			}
			return
		}
		select {
		case c.events <- msg.GetValue():
		case <-c.stream.Context().Done():
			return
		}
	}
}

// Send implements engine.Client.
func (c *remoteClient) Send(request []byte) error {
	select {
	case <-c.done:
		return c.closedErr()
	default:
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.stream.SendMsg(wrapperspb.Bytes(request)); err != nil {
		return fmt.Errorf("%w: %w", engine.ErrDisconnected, err)
	}
	return nil
}

// Receive implements engine.Client.
func (c *remoteClient) Receive(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data := <-c.events:
		return data, nil
	case <-c.done:
		// Drain what the pump delivered before it stopped.
		select {
		case data := <-c.events:
			return data, nil
		default:
		}
		return nil, c.closedErr()
	case <-timer.C:
		return nil, nil
	}
}

// Execute implements engine.Client.
func (c *remoteClient) Execute(request []byte) ([]byte, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(context.Background(), executeMethod, wrapperspb.Bytes(request), out); err != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrDisconnected, err)
	}
	return out.GetValue(), nil
}

// Destroy implements engine.Client.
func (c *remoteClient) Destroy() error {
	err := engine.ErrDestroyed
	c.destroyOnce.Do(func() {
		err = nil
		c.destroyed.Store(true)
		c.sendMu.Lock()
		if cerr := c.stream.CloseSend(); cerr != nil {
			c.logger.Debug("closing engine stream", "error", cerr)
		}
		c.sendMu.Unlock()
		c.cancel()
		<-c.done
	})
	return err
}

func (c *remoteClient) closedErr() error {
	if c.destroyed.Load() {
		return engine.ErrDestroyed
	}
	if c.pumpErr != nil {
		return fmt.Errorf("%w: %w", engine.ErrDisconnected, c.pumpErr)
	}
	return engine.ErrDisconnected
}
