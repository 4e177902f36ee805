// ABOUTME: Forward-only authorization state machine.
// ABOUTME: Issues login requests in response to authorization state updates.

package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/2389/tdsession/internal/tdapi"
)

var (
	// ErrLoginRequired stops a session that needs a login nobody requested.
	ErrLoginRequired = errors.New("authorization required but no login was requested")

	// ErrEngineClosed stops a session whose engine reported Closed or LoggingOut.
	ErrEngineClosed = errors.New("engine closed the session")
)

// Sender issues a request and waits for its response.
type Sender interface {
	Send(ctx context.Context, req tdapi.Object) (tdapi.Object, error)
}

// Config wires a Machine to its session.
type Config struct {
	Sender   Sender
	Provider CredentialProvider

	// Stop is called, possibly more than once, when the session must end.
	Stop func(reason error)

	// OnState observes every accepted state change. Optional.
	OnState func(state tdapi.AuthorizationState)

	Logger *slog.Logger
}

// Machine is the authorization state machine for one session.
type Machine struct {
	sender   Sender
	provider CredentialProvider
	stop     func(error)
	onState  func(tdapi.AuthorizationState)
	logger   *slog.Logger

	mu        sync.Mutex
	state     tdapi.AuthorizationState
	rank      int
	requested bool
	creds     Credentials

	loggedIn atomic.Bool
}

// New creates a Machine.
func New(cfg Config) *Machine {
	provider := cfg.Provider
	if provider == nil {
		provider = NoProvider{}
	}
	stop := cfg.Stop
	if stop == nil {
		stop = func(error) {}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		sender:   cfg.Sender,
		provider: provider,
		stop:     stop,
		onState:  cfg.OnState,
		logger:   logger.With("component", "login"),
		rank:     -1,
	}
}

// Request starts a login attempt with the given credentials.
func (m *Machine) Request(creds Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requested = true
	m.creds = creds
}

// Reset forgets all progress. The session calls it on restart.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	m.rank = -1
	m.loggedIn.Store(false)
}

// LoggedIn reports whether the engine reached Ready.
func (m *Machine) LoggedIn() bool {
	return m.loggedIn.Load()
}

// State returns the last accepted state, or nil.
func (m *Machine) State() tdapi.AuthorizationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// rank orders the states; the machine never moves to a lower or equal rank.
// Other states rank -1 and are never accepted.
func rank(st tdapi.AuthorizationState) int {
	switch st.(type) {
	case *tdapi.AuthorizationStateWaitTdlibParameters:
		return 0
	case *tdapi.AuthorizationStateWaitEncryptionKey:
		return 1
	case *tdapi.AuthorizationStateWaitPhoneNumber:
		return 2
	case *tdapi.AuthorizationStateWaitCode:
		return 3
	case *tdapi.AuthorizationStateWaitPassword:
		return 4
	case *tdapi.AuthorizationStateReady:
		return 5
	case *tdapi.AuthorizationStateLoggingOut:
		return 6
	case *tdapi.AuthorizationStateClosing:
		return 7
	case *tdapi.AuthorizationStateClosed:
		return 8
	case *tdapi.AuthorizationStateOther:
		return -1
	default:
		return -1
	}
}

// advance records st if it moves the machine forward.
func (m *Machine) advance(st tdapi.AuthorizationState) (bool, Credentials, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := rank(st)
	if r <= m.rank {
		return false, Credentials{}, false
	}
	m.state = st
	m.rank = r
	return true, m.creds, m.requested
}

// Handle processes one authorization state. The returned error is the reason
// the session was stopped, if it was.
func (m *Machine) Handle(ctx context.Context, st tdapi.AuthorizationState) error {
	if other, ok := st.(*tdapi.AuthorizationStateOther); ok {
		m.logger.Warn("unhandled authorization state", "state", other.TypeTag)
		return nil
	}

	accepted, creds, requested := m.advance(st)
	if !accepted {
		m.logger.Debug("ignoring authorization state", "state", st.Type())
		return nil
	}
	m.logger.Info("authorization state", "state", st.Type())
	if m.onState != nil {
		m.onState(st)
	}

	var err error
	switch s := st.(type) {
	case *tdapi.AuthorizationStateWaitTdlibParameters, *tdapi.AuthorizationStateWaitEncryptionKey:
		// Answered by the session at start.
	case *tdapi.AuthorizationStateWaitPhoneNumber:
		if !requested {
			err = ErrLoginRequired
			break
		}
		err = m.sendLoginKey(ctx, creds)
	case *tdapi.AuthorizationStateWaitCode:
		if !requested {
			m.logger.Warn("code requested but no login is active")
			return nil
		}
		err = m.sendCode(ctx, creds, s.IsRegistered)
	case *tdapi.AuthorizationStateWaitPassword:
		if !requested {
			m.logger.Warn("password requested but no login is active")
			return nil
		}
		err = m.sendPassword(ctx, creds, s.PasswordHint)
	case *tdapi.AuthorizationStateReady:
		m.ready()
	case *tdapi.AuthorizationStateClosing:
		m.loggedIn.Store(false)
	case *tdapi.AuthorizationStateLoggingOut, *tdapi.AuthorizationStateClosed:
		m.loggedIn.Store(false)
		err = fmt.Errorf("%w: %s", ErrEngineClosed, st.Type())
	}

	if err != nil {
		m.logger.Error("authorization failed", "state", st.Type(), "error", err)
		m.stop(err)
	}
	return err
}

func (m *Machine) sendLoginKey(ctx context.Context, creds Credentials) error {
	token, phone := creds.Token, creds.Phone
	if token == "" && phone == "" {
		key, err := m.provider.LoginKey(ctx)
		if err != nil {
			return fmt.Errorf("reading login key: %w", err)
		}
		if IsBotToken(key) {
			token = key
		} else {
			phone = key
		}
	}

	if token != "" {
		return m.send(ctx, &tdapi.CheckAuthenticationBotToken{Token: token})
	}
	return m.send(ctx, &tdapi.SetAuthenticationPhoneNumber{PhoneNumber: phone})
}

func (m *Machine) sendCode(ctx context.Context, creds Credentials, registered bool) error {
	code := creds.Code
	if code == "" {
		var err error
		if code, err = m.provider.Code(ctx); err != nil {
			return fmt.Errorf("reading code: %w", err)
		}
	}

	req := &tdapi.CheckAuthenticationCode{Code: code}
	if !registered {
		first, last := creds.FirstName, creds.LastName
		if first == "" {
			var err error
			if first, last, err = m.provider.Names(ctx); err != nil {
				return fmt.Errorf("reading names: %w", err)
			}
		}
		req.FirstName, req.LastName = first, last
	}
	return m.send(ctx, req)
}

func (m *Machine) sendPassword(ctx context.Context, creds Credentials, hint string) error {
	m.logger.Info("password required", "hint", hint)

	var (
		password string
		err      error
	)
	if creds.Password != nil {
		password, err = creds.Password()
	} else {
		password, err = m.provider.Password(ctx, hint)
	}
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	return m.send(ctx, &tdapi.CheckAuthenticationPassword{Password: password})
}

func (m *Machine) ready() {
	m.mu.Lock()
	m.creds = Credentials{}
	m.requested = false
	m.mu.Unlock()

	m.loggedIn.Store(true)
	m.logger.Info("logged in")
}

func (m *Machine) send(ctx context.Context, req tdapi.Object) error {
	if _, err := m.sender.Send(ctx, req); err != nil {
		return fmt.Errorf("%s: %w", req.Type(), err)
	}
	return nil
}
