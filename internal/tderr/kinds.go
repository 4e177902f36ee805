// ABOUTME: Static table of known engine error kinds keyed by code and message pattern.
// ABOUTME: Patterns use X in place of digit runs.

package tderr

import "fmt"

// Kind is a class of engine error.
type Kind struct {
	Code        int
	ID          string
	Description string
}

func (k *Kind) Error() string {
	return fmt.Sprintf("[%d %s]: %s", k.Code, k.ID, k.Description)
}

// UnknownCode is the code of the Unknown kind.
const UnknownCode = 520

// Unknown is the kind of every error missing from the table.
var Unknown = &Kind{Code: UnknownCode, ID: "UNKNOWN", Description: "unknown engine error"}

var (
	BadRequest          = &Kind{400, "BAD_REQUEST", "the request is malformed"}
	PhoneNumberInvalid  = &Kind{400, "PHONE_NUMBER_INVALID", "the phone number is invalid"}
	PhoneNumberBanned   = &Kind{400, "PHONE_NUMBER_BANNED", "the phone number is banned"}
	PhoneCodeInvalid    = &Kind{400, "PHONE_CODE_INVALID", "the login code is invalid"}
	PhoneCodeExpired    = &Kind{400, "PHONE_CODE_EXPIRED", "the login code has expired"}
	PhoneCodeEmpty      = &Kind{400, "PHONE_CODE_EMPTY", "the login code is missing"}
	PasswordHashInvalid = &Kind{400, "PASSWORD_HASH_INVALID", "the password is wrong"}
	AccessTokenInvalid  = &Kind{400, "ACCESS_TOKEN_INVALID", "the bot token is invalid"}
	AccessTokenExpired  = &Kind{400, "ACCESS_TOKEN_EXPIRED", "the bot token was revoked"}
	FirstNameInvalid    = &Kind{400, "FIRSTNAME_INVALID", "the first name is invalid"}
	LastNameInvalid     = &Kind{400, "LASTNAME_INVALID", "the last name is invalid"}
	APIIDInvalid        = &Kind{400, "API_ID_INVALID", "the api_id/api_hash pair is invalid"}
	ChatNotFound        = &Kind{400, "CHAT_NOT_FOUND", "the chat is not known to the engine"}

	AuthKeyUnregistered = &Kind{401, "AUTH_KEY_UNREGISTERED", "the session is not registered"}
	SessionRevoked      = &Kind{401, "SESSION_REVOKED", "the session was terminated"}
	SessionExpired      = &Kind{401, "SESSION_EXPIRED", "the session has expired"}
	UserDeactivated     = &Kind{401, "USER_DEACTIVATED", "the account was deleted"}
	Unauthorized        = &Kind{401, "UNAUTHORIZED", "the session is not authorized"}

	ChatWriteForbidden    = &Kind{403, "CHAT_WRITE_FORBIDDEN", "writing to the chat is not allowed"}
	UserPrivacyRestricted = &Kind{403, "USER_PRIVACY_RESTRICTED", "the user's privacy settings forbid this"}

	NotFound = &Kind{404, "NOT_FOUND", "the requested object does not exist"}

	FloodWait       = &Kind{420, "FLOOD_WAIT_X", "too many requests, wait before retrying"}
	TooManyRequests = &Kind{429, "TOO_MANY_REQUESTS", "too many requests, wait before retrying"}

	RequestAborted = &Kind{500, "REQUEST_ABORTED", "the engine aborted the request"}
)

// table maps code -> message pattern -> kind.
var table = map[int]map[string]*Kind{
	400: {
		"Bad Request":           BadRequest,
		"PHONE_NUMBER_INVALID":  PhoneNumberInvalid,
		"PHONE_NUMBER_BANNED":   PhoneNumberBanned,
		"PHONE_CODE_INVALID":    PhoneCodeInvalid,
		"PHONE_CODE_EXPIRED":    PhoneCodeExpired,
		"PHONE_CODE_EMPTY":      PhoneCodeEmpty,
		"PASSWORD_HASH_INVALID": PasswordHashInvalid,
		"ACCESS_TOKEN_INVALID":  AccessTokenInvalid,
		"ACCESS_TOKEN_EXPIRED":  AccessTokenExpired,
		"FIRSTNAME_INVALID":     FirstNameInvalid,
		"LASTNAME_INVALID":      LastNameInvalid,
		"API_ID_INVALID":        APIIDInvalid,
		"Chat not found":        ChatNotFound,
	},
	401: {
		"AUTH_KEY_UNREGISTERED": AuthKeyUnregistered,
		"SESSION_REVOKED":       SessionRevoked,
		"SESSION_EXPIRED":       SessionExpired,
		"USER_DEACTIVATED":      UserDeactivated,
		"Unauthorized":          Unauthorized,
	},
	403: {
		"CHAT_WRITE_FORBIDDEN":    ChatWriteForbidden,
		"USER_PRIVACY_RESTRICTED": UserPrivacyRestricted,
	},
	404: {
		"Not Found": NotFound,
	},
	420: {
		"FLOOD_WAIT_X": FloodWait,
	},
	429: {
		"Too Many Requests: retry after X": TooManyRequests,
	},
	500: {
		"Request aborted": RequestAborted,
	},
}
