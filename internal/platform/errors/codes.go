package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeStorage  Code = "STORAGE"

	// Ceremony errors
	CodeChallengeInvalid     Code = "CHALLENGE_INVALID"
	CodeVerificationFailed   Code = "VERIFICATION_FAILED"
	CodeAuthenticationFailed Code = "AUTHENTICATION_FAILED"
	CodeCredentialNotFound   Code = "CREDENTIAL_NOT_FOUND"
	CodeCredentialExists     Code = "CREDENTIAL_EXISTS"
	CodeCredentialEmptyLabel Code = "CREDENTIAL_EMPTY_LABEL"

	// Member errors
	CodeMemberNotFound         Code = "MEMBER_NOT_FOUND"
	CodeMemberEmptyDisplayName Code = "MEMBER_EMPTY_DISPLAY_NAME"

	// Session token errors
	CodeSessionInvalid Code = "SESSION_INVALID"
	CodeSessionExpired Code = "SESSION_EXPIRED"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodeMemberNotFound:
		return http.StatusNotFound
	case CodeChallengeInvalid, CodeVerificationFailed, CodeMemberEmptyDisplayName, CodeCredentialExists, CodeCredentialEmptyLabel:
		return http.StatusBadRequest
	case CodeAuthenticationFailed, CodeCredentialNotFound, CodeSessionInvalid, CodeSessionExpired:
		return http.StatusUnauthorized
	case CodeStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
