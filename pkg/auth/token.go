package auth

import (
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Token is the provider token response kept in the session. UserInfo holds
// the verified id_token claims and is absent when the provider returned no
// id_token.
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    int64     `json:"expires_at,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	UserInfo     *UserInfo `json:"userinfo,omitempty"`
}

// UserInfo carries the standard OIDC claims Google puts in its id_token.
type UserInfo struct {
	Sub           string `json:"sub"`
	Issuer        string `json:"iss,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Locale        string `json:"locale,omitempty"`
	HostedDomain  string `json:"hd,omitempty"`
}

// Subject returns the stable provider user id, if the token carries userinfo.
func (t *Token) Subject() (string, bool) {
	if t == nil || t.UserInfo == nil || t.UserInfo.Sub == "" {
		return "", false
	}

	return t.UserInfo.Sub, true
}

func (t *Token) Expiry() time.Time {
	if t.ExpiresAt == 0 {
		return time.Time{}
	}

	return time.Unix(t.ExpiresAt, 0)
}

func newToken(tok *oauth2.Token, rawIDToken string, idToken *oidc.IDToken) (*Token, error) {
	t := &Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		IDToken:      rawIDToken,
	}

	if !tok.Expiry.IsZero() {
		t.ExpiresAt = tok.Expiry.Unix()
	}

	if scope, ok := tok.Extra("scope").(string); ok {
		t.Scope = scope
	}

	if idToken != nil {
		info := &UserInfo{}
		if err := idToken.Claims(info); err != nil {
			return nil, err
		}

		t.UserInfo = info
	}

	return t, nil
}
