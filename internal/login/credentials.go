// ABOUTME: Credential values and the provider interface for missing ones.
// ABOUTME: Includes the deferred Secret and the bot-token heuristic.

package login

import (
	"context"
	"errors"
	"regexp"
	"sync"
)

// ErrNoCredentials is returned by NoProvider for every prompt.
var ErrNoCredentials = errors.New("no credential provider configured")

var botToken = regexp.MustCompile(`^\d+:\S+$`)

// IsBotToken reports whether key looks like a bot token rather than a phone number.
func IsBotToken(key string) bool {
	return botToken.MatchString(key)
}

// Secret produces a value on demand.
type Secret func() (string, error)

// Deferred wraps fn so it runs at most once; later calls return the first result.
func Deferred(fn func() (string, error)) Secret {
	return Secret(sync.OnceValues(fn))
}

// Literal returns a Secret holding s.
func Literal(s string) Secret {
	return func() (string, error) { return s, nil }
}

// Credentials are the values known before the login starts.
type Credentials struct {
	Token     string
	Phone     string
	Code      string
	FirstName string
	LastName  string
	Password  Secret
}

// CredentialProvider supplies values the Credentials do not carry.
// Implementations may block, e.g. on terminal input.
type CredentialProvider interface {
	// LoginKey returns a phone number or a bot token.
	LoginKey(ctx context.Context) (string, error)
	// Code returns the one-time code sent to the user.
	Code(ctx context.Context) (string, error)
	// Names returns the first and last name for a new account.
	Names(ctx context.Context) (first, last string, err error)
	// Password returns the cloud password; hint is the engine's hint text.
	Password(ctx context.Context, hint string) (string, error)
}

// NoProvider fails every prompt with ErrNoCredentials.
type NoProvider struct{}

func (NoProvider) LoginKey(context.Context) (string, error)      { return "", ErrNoCredentials }
func (NoProvider) Code(context.Context) (string, error)          { return "", ErrNoCredentials }
func (NoProvider) Names(context.Context) (string, string, error) { return "", "", ErrNoCredentials }
func (NoProvider) Password(context.Context, string) (string, error) {
	return "", ErrNoCredentials
}
