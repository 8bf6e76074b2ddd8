// Package oidctest runs a minimal OpenID Connect issuer for tests: discovery,
// keys, an authorization endpoint that approves immediately and a token
// endpoint that returns RS256-signed id_tokens.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	keyID = "oidctest"

	// BadCode is rejected by the token endpoint with invalid_grant.
	BadCode = "bad-code"
)

// Fault makes the token endpoint issue an id_token that fails one check of
// the relying party.
type Fault int

const (
	NoFault Fault = iota
	// ForeignKey signs with a key the issuer does not publish.
	ForeignKey
	// WrongAudience issues the token to another client.
	WrongAudience
	// Expired issues a token that expired an hour ago.
	Expired
	// MalformedClaims sends email_verified as a string.
	MalformedClaims
)

type Claims struct {
	Subject string
	Email   string
	Name    string
}

type grant struct {
	nonce    string
	clientID string
	claims   Claims
}

type Provider struct {
	Server *httptest.Server

	ClientID     string
	ClientSecret string

	key        *rsa.PrivateKey
	foreignKey *rsa.PrivateKey

	mu            sync.Mutex
	grants        map[string]grant
	claims        Claims
	omitIDToken   bool
	nonceOverride string
	fault         Fault
}

func New(clientID, clientSecret string) (*Provider, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	foreignKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		key:          key,
		foreignKey:   foreignKey,
		grants:       map[string]grant{},
		claims: Claims{
			Subject: "108234567890123456789",
			Email:   "mock.anderson@example.com",
			Name:    "Anderson, Mock",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", p.discovery)
	mux.HandleFunc("/keys", p.keys)
	mux.HandleFunc("/auth", p.authorize)
	mux.HandleFunc("/token", p.token)

	p.Server = httptest.NewServer(mux)

	return p, nil
}

func (p *Provider) Close() {
	p.Server.Close()
}

func (p *Provider) Issuer() string {
	return p.Server.URL
}

// SetClaims changes the claims of the next approved authorization.
func (p *Provider) SetClaims(c Claims) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.claims = c
}

// OmitIDToken makes the token endpoint answer without an id_token.
func (p *Provider) OmitIDToken(omit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.omitIDToken = omit
}

// OverrideNonce replaces the nonce put into id_tokens; empty restores the
// nonce of the authorization request.
func (p *Provider) OverrideNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nonceOverride = nonce
}

// SetFault breaks the id_tokens issued from now on; NoFault restores valid
// tokens.
func (p *Provider) SetFault(f Fault) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fault = f
}

// Approve registers a code as if the user had consented to an authorization
// request with the given nonce, and returns it.
func (p *Provider) Approve(nonce string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	code := uuid.NewString()
	p.grants[code] = grant{
		nonce:    nonce,
		clientID: p.ClientID,
		claims:   p.claims,
	}

	return code
}

func (p *Provider) discovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                p.Issuer(),
		"authorization_endpoint":                p.Issuer() + "/auth",
		"token_endpoint":                        p.Issuer() + "/token",
		"jwks_uri":                              p.Issuer() + "/keys",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"scopes_supported":                      []string{"openid", "email", "profile"},
	})
}

func (p *Provider) keys(w http.ResponseWriter, _ *http.Request) {
	pub := p.key.PublicKey

	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{
			{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": keyID,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	})
}

// authorize approves every request and redirects straight back with a code.
func (p *Provider) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	redirectURI, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || q.Get("client_id") != p.ClientID {
		http.Error(w, "invalid client or redirect uri", http.StatusBadRequest)
		return
	}

	code := p.Approve(q.Get("nonce"))

	params := redirectURI.Query()
	params.Set("code", code)
	params.Set("state", q.Get("state"))
	redirectURI.RawQuery = params.Encode()

	http.Redirect(w, r, redirectURI.String(), http.StatusFound)
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID, clientSecret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}

	if clientID != p.ClientID || clientSecret != p.ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	code := r.PostForm.Get("code")

	p.mu.Lock()
	g, found := p.grants[code]
	delete(p.grants, code)
	omitIDToken := p.omitIDToken
	nonceOverride := p.nonceOverride
	fault := p.fault
	p.mu.Unlock()

	if code == BadCode || !found {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Bad Request",
		})
		return
	}

	resp := map[string]any{
		"access_token": "ya29." + uuid.NewString(),
		"token_type":   "Bearer",
		"expires_in":   3599,
		"scope":        "openid https://www.googleapis.com/auth/userinfo.email https://www.googleapis.com/auth/userinfo.profile",
	}

	if !omitIDToken {
		nonce := g.nonce
		if nonceOverride != "" {
			nonce = nonceOverride
		}

		idToken, err := p.signIDToken(g, nonce, fault)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
			return
		}

		resp["id_token"] = idToken
	}

	writeJSON(w, http.StatusOK, resp)
}

func (p *Provider) signIDToken(g grant, nonce string, fault Fault) (string, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"iss":            p.Issuer(),
		"aud":            g.clientID,
		"sub":            g.claims.Subject,
		"email":          g.claims.Email,
		"email_verified": true,
		"name":           g.claims.Name,
		"nonce":          nonce,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}

	key := p.key

	switch fault {
	case ForeignKey:
		key = p.foreignKey
	case WrongAudience:
		claims["aud"] = "another-client.apps.googleusercontent.com"
	case Expired:
		claims["iat"] = now.Add(-2 * time.Hour).Unix()
		claims["exp"] = now.Add(-time.Hour).Unix()
	case MalformedClaims:
		claims["email_verified"] = "yes"
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = keyID

	return tok.SignedString(key)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
