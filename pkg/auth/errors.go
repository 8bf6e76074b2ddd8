package auth

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	ErrCodeMismatchingState = "mismatching_state"
	ErrCodeInvalidIDToken   = "invalid_id_token"
	ErrCodeInvalidNonce     = "invalid_nonce"
	ErrCodeTokenEndpoint    = "token_endpoint_error"
)

// OAuthError is a failure of the authorization flow the user can be told
// about: a provider error redirect, a state mismatch, a rejected code or an
// id_token that does not verify.
type OAuthError struct {
	Code        string
	Description string
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return e.Code
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func NewOAuthError(code, description string) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
	}
}

func AsOAuthError(err error) (*OAuthError, bool) {
	var oae *OAuthError
	if errors.As(err, &oae) {
		return oae, true
	}

	return nil, false
}

// fromRetrieveError turns a token endpoint error response into an OAuthError.
func fromRetrieveError(re *oauth2.RetrieveError) *OAuthError {
	code := re.ErrorCode
	if code == "" {
		code = ErrCodeTokenEndpoint
	}

	return NewOAuthError(code, re.ErrorDescription)
}
