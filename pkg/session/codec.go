package session

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const hkdfInfo = "keys2text session cookie v1"

var (
	ErrInvalidCookie = errors.New("invalid session cookie")
	ErrExpiredCookie = errors.New("expired session cookie")
)

type payload struct {
	IssuedAt int64  `json:"iat"`
	Values   Values `json:"values"`
}

// Codec seals session values into an opaque cookie value and opens them again.
// The cookie is authenticated and encrypted, and carries the time it was
// issued so that values older than maxAge are rejected.
type Codec struct {
	aead   cipher.AEAD
	name   string
	maxAge time.Duration
	now    func() time.Time
}

// NewCodec derives the cookie key from secretKey. The cookie name is bound to
// the sealed value, so a value issued under one name does not open under another.
func NewCodec(secretKey, name string, maxAge time.Duration) (*Codec, error) {
	if secretKey == "" {
		return nil, errors.New("session secret key is empty")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secretKey), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create session cipher: %w", err)
	}

	return &Codec{
		aead:   aead,
		name:   name,
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

func (c *Codec) Encode(values Values) (string, error) {
	plain, err := json.Marshal(payload{
		IssuedAt: c.now().Unix(),
		Values:   values,
	})
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plain)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plain, []byte(c.name))

	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *Codec) Decode(value string) (Values, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrInvalidCookie
	}

	if len(sealed) < c.aead.NonceSize()+c.aead.Overhead() {
		return nil, ErrInvalidCookie
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]

	plain, err := c.aead.Open(nil, nonce, ciphertext, []byte(c.name))
	if err != nil {
		return nil, ErrInvalidCookie
	}

	var p payload
	if err := json.Unmarshal(plain, &p); err != nil {
		return nil, ErrInvalidCookie
	}

	if c.maxAge > 0 && c.now().Sub(time.Unix(p.IssuedAt, 0)) > c.maxAge {
		return nil, ErrExpiredCookie
	}

	if p.Values == nil {
		p.Values = Values{}
	}

	return p.Values, nil
}
