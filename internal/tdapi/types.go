// ABOUTME: Request and result types the session core sends or inspects itself.
// ABOUTME: Parameters, authentication checks, engine logging, error and ok.

package tdapi

// Core type tags.
const (
	TypeError = "error"
	TypeOk    = "ok"
)

// Error is the engine's negative response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (*Error) Type() string { return TypeError }

// Ok is the engine's empty success response.
type Ok struct{}

func (*Ok) Type() string { return TypeOk }

// TdlibParameters carries the engine's startup parameters.
type TdlibParameters struct {
	UseTestDC              bool   `json:"use_test_dc"`
	DatabaseDirectory      string `json:"database_directory"`
	FilesDirectory         string `json:"files_directory"`
	UseFileDatabase        bool   `json:"use_file_database"`
	UseChatInfoDatabase    bool   `json:"use_chat_info_database"`
	UseMessageDatabase     bool   `json:"use_message_database"`
	UseSecretChats         bool   `json:"use_secret_chats"`
	APIID                  int    `json:"api_id"`
	APIHash                string `json:"api_hash"`
	SystemLanguageCode     string `json:"system_language_code"`
	DeviceModel            string `json:"device_model"`
	SystemVersion          string `json:"system_version"`
	ApplicationVersion     string `json:"application_version"`
	EnableStorageOptimizer bool   `json:"enable_storage_optimizer"`
	IgnoreFileNames        bool   `json:"ignore_file_names"`
}

func (*TdlibParameters) Type() string { return "tdlibParameters" }

func (p TdlibParameters) MarshalJSON() ([]byte, error) {
	type plain TdlibParameters
	return typed("tdlibParameters", plain(p))
}

// SetTdlibParameters answers authorizationStateWaitTdlibParameters.
type SetTdlibParameters struct {
	Parameters *TdlibParameters `json:"parameters"`
}

func (*SetTdlibParameters) Type() string { return "setTdlibParameters" }

// CheckDatabaseEncryptionKey answers authorizationStateWaitEncryptionKey.
type CheckDatabaseEncryptionKey struct {
	EncryptionKey string `json:"encryption_key"`
}

func (*CheckDatabaseEncryptionKey) Type() string { return "checkDatabaseEncryptionKey" }

// SetAuthenticationPhoneNumber starts a user login.
type SetAuthenticationPhoneNumber struct {
	PhoneNumber          string `json:"phone_number"`
	AllowFlashCall       bool   `json:"allow_flash_call"`
	IsCurrentPhoneNumber bool   `json:"is_current_phone_number"`
}

func (*SetAuthenticationPhoneNumber) Type() string { return "setAuthenticationPhoneNumber" }

// CheckAuthenticationBotToken logs in as a bot.
type CheckAuthenticationBotToken struct {
	Token string `json:"token"`
}

func (*CheckAuthenticationBotToken) Type() string { return "checkAuthenticationBotToken" }

// CheckAuthenticationCode submits the one-time code, plus names for new accounts.
type CheckAuthenticationCode struct {
	Code      string `json:"code"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func (*CheckAuthenticationCode) Type() string { return "checkAuthenticationCode" }

// CheckAuthenticationPassword submits the two-step verification password.
type CheckAuthenticationPassword struct {
	Password string `json:"password"`
}

func (*CheckAuthenticationPassword) Type() string { return "checkAuthenticationPassword" }

// GetAuthorizationState asks for the current authorization state.
type GetAuthorizationState struct{}

func (*GetAuthorizationState) Type() string { return "getAuthorizationState" }

// Close asks the engine to close the session.
type Close struct{}

func (*Close) Type() string { return "close" }

// LogOut logs the current user out.
type LogOut struct{}

func (*LogOut) Type() string { return "logOut" }

// SetLogVerbosityLevel sets the engine's internal log level.
type SetLogVerbosityLevel struct {
	NewVerbosityLevel int `json:"new_verbosity_level"`
}

func (*SetLogVerbosityLevel) Type() string { return "setLogVerbosityLevel" }

// LogStream is where the engine writes its internal log.
type LogStream interface {
	Object
	isLogStream()
}

// LogStreamDefault writes the engine log to stderr.
type LogStreamDefault struct{}

func (*LogStreamDefault) Type() string { return "logStreamDefault" }
func (*LogStreamDefault) isLogStream() {}

func (LogStreamDefault) MarshalJSON() ([]byte, error) {
	return typed("logStreamDefault", struct{}{})
}

// LogStreamFile writes the engine log to a size-capped file.
type LogStreamFile struct {
	Path        string `json:"path"`
	MaxFileSize int64  `json:"max_file_size"`
}

func (*LogStreamFile) Type() string { return "logStreamFile" }
func (*LogStreamFile) isLogStream() {}

func (f LogStreamFile) MarshalJSON() ([]byte, error) {
	type plain LogStreamFile
	return typed("logStreamFile", plain(f))
}

// SetLogStream redirects the engine log.
type SetLogStream struct {
	LogStream LogStream `json:"log_stream"`
}

func (*SetLogStream) Type() string { return "setLogStream" }

func registerCore(r *Registry) {
	r.ctors[TypeError] = func() Object { return &Error{} }
	r.ctors[TypeOk] = func() Object { return &Ok{} }
	r.ctors[TypeUpdateAuthorizationState] = func() Object { return &UpdateAuthorizationState{} }
	r.ctors[TypeAuthorizationStateWaitTdlibParameters] = func() Object { return &AuthorizationStateWaitTdlibParameters{} }
	r.ctors[TypeAuthorizationStateWaitEncryptionKey] = func() Object { return &AuthorizationStateWaitEncryptionKey{} }
	r.ctors[TypeAuthorizationStateWaitPhoneNumber] = func() Object { return &AuthorizationStateWaitPhoneNumber{} }
	r.ctors[TypeAuthorizationStateWaitCode] = func() Object { return &AuthorizationStateWaitCode{} }
	r.ctors[TypeAuthorizationStateWaitPassword] = func() Object { return &AuthorizationStateWaitPassword{} }
	r.ctors[TypeAuthorizationStateReady] = func() Object { return &AuthorizationStateReady{} }
	r.ctors[TypeAuthorizationStateLoggingOut] = func() Object { return &AuthorizationStateLoggingOut{} }
	r.ctors[TypeAuthorizationStateClosing] = func() Object { return &AuthorizationStateClosing{} }
	r.ctors[TypeAuthorizationStateClosed] = func() Object { return &AuthorizationStateClosed{} }
}
