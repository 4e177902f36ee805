// ABOUTME: Profile selection and resolution into a session.Config
// ABOUTME: Applies engine parameter defaults and resolves profile directories

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/2389/tdsession/internal/login"
	"github.com/2389/tdsession/internal/session"
	"github.com/2389/tdsession/internal/tdapi"
)

// Engine parameter defaults for fields a profile leaves empty.
const (
	DefaultLanguageCode       = "en"
	DefaultDeviceModel        = "Unix/Console/Bot"
	DefaultSystemVersion      = "UNIX/??"
	DefaultApplicationVersion = "1.1.1"
)

// Profile is a resolved profile: the session configuration plus the
// credentials it was configured with.
type Profile struct {
	Name        string
	Dir         string
	Session     session.Config
	Credentials login.Credentials
}

// DataRoot is the directory relative profile data_dir values resolve against:
// $XDG_DATA_HOME/tdsession, else ~/.local/share/tdsession.
func DataRoot() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "share", "tdsession")
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "tdsession")
}

// ProfileName picks the profile to run: the explicit name if given,
// otherwise default_profile.
func (c *Config) ProfileName(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if c.DefaultProfile == "" {
		return "", fmt.Errorf("no profile given and default_profile is not set")
	}
	return c.DefaultProfile, nil
}

// Resolve builds the Profile named name. An empty name selects default_profile.
func (c *Config) Resolve(name string) (*Profile, error) {
	name, err := c.ProfileName(name)
	if err != nil {
		return nil, err
	}
	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}

	dir := p.DataDir
	if dir == "" {
		dir = name
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(DataRoot(), dir)
	}

	logFile := p.LogName
	if logFile != "" && !filepath.IsAbs(logFile) {
		logFile = filepath.Join(dir, logFile)
	}

	params := tdapi.TdlibParameters{
		UseTestDC:              p.Test,
		DatabaseDirectory:      filepath.Join(dir, "data"),
		FilesDirectory:         filepath.Join(dir, "files"),
		UseFileDatabase:        p.UseFileDB,
		UseChatInfoDatabase:    boolOr(p.UseChatInfoDB, true),
		UseMessageDatabase:     p.UseMessageDB,
		UseSecretChats:         p.UseSecretChats,
		APIID:                  p.APIID,
		APIHash:                p.APIHash,
		SystemLanguageCode:     stringOr(p.LanguageCode, DefaultLanguageCode),
		DeviceModel:            stringOr(p.DeviceModel, DefaultDeviceModel),
		SystemVersion:          stringOr(p.SystemVersion, DefaultSystemVersion),
		ApplicationVersion:     stringOr(p.ApplicationVersion, DefaultApplicationVersion),
		EnableStorageOptimizer: boolOr(p.UseFileGC, true),
		IgnoreFileNames:        !boolOr(p.FileReadableNames, true),
	}

	creds := login.Credentials{
		Token: p.Token,
		Phone: p.Phone,
	}
	if p.Password != "" {
		creds.Password = login.Literal(p.Password)
	}

	return &Profile{
		Name: name,
		Dir:  dir,
		Session: session.Config{
			Parameters:    params,
			EncryptionKey: p.EncryptionKey,
			EngineLog: session.EngineLog{
				Verbosity:   p.Verbosity,
				File:        logFile,
				MaxFileSize: p.LogMaxFileSize,
			},
			Workers:     c.Session.Workers,
			WaitTimeout: c.Session.WaitTimeout,
			MaxRetries:  c.Session.MaxRetries,
			PollTimeout: c.Session.PollTimeout,
			QueueSize:   c.Session.QueueSize,
			StopTimeout: c.Session.StopTimeout,
			LateTTL:     c.Session.LateTTL,
		},
		Credentials: creds,
	}, nil
}

// TriagePath returns triage.path, resolved against the config file's directory.
func (c *Config) TriagePath() string {
	if c.Triage.Path == "" || filepath.IsAbs(c.Triage.Path) || c.dir == "" {
		return c.Triage.Path
	}
	return filepath.Join(c.dir, c.Triage.Path)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
