// Package verify authenticates inbound webhook requests with a shared bearer
// token, an HMAC-SHA256 body signature, both, or neither.
package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Mode selects which checks a Verifier applies.
type Mode int

const (
	// Open authorizes every request.
	Open Mode = iota
	TokenOnly
	SignatureOnly
	Both
)

func (m Mode) String() string {
	switch m {
	case Open:
		return "open"
	case TokenOnly:
		return "token"
	case SignatureOnly:
		return "signature"
	case Both:
		return "token+signature"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func (m Mode) checksToken() bool     { return m == TokenOnly || m == Both }
func (m Mode) checksSignature() bool { return m == SignatureOnly || m == Both }

// ParseMode maps a configured mode name to a Mode. It accepts the names
// printed by Mode.String plus "both" and "none".
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "open", "none":
		return Open, nil
	case "token":
		return TokenOnly, nil
	case "signature":
		return SignatureOnly, nil
	case "token+signature", "both":
		return Both, nil
	default:
		return Open, fmt.Errorf("unknown verification mode %q", name)
	}
}

// ModeFor derives the mode implied by which credentials are configured.
func ModeFor(token, secret string) Mode {
	switch {
	case token != "" && secret != "":
		return Both
	case token != "":
		return TokenOnly
	case secret != "":
		return SignatureOnly
	default:
		return Open
	}
}

// Rejection reasons reported in AuthError.
const (
	ReasonTokenInvalid     = "token_invalid"
	ReasonSignatureMissing = "signature_missing"
	ReasonSignatureInvalid = "signature_invalid"
)

// ErrUnauthorized matches every AuthError via errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// AuthError is returned when a request fails verification.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return "unauthorized: " + e.Reason }

func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }

// Default header names used by the webhook-to-notes server.
const (
	DefaultTokenHeader = "X-Webhook-Token"
	signaturePrefix    = "sha256="
)

// DefaultSignatureHeaders are consulted in order; the first one present wins.
var DefaultSignatureHeaders = []string{"X-Webhook-Signature", "X-Hub-Signature-256"}

// Config describes a Verifier.
type Config struct {
	Mode             Mode
	Token            string
	Secret           string
	TokenHeader      string
	SignatureHeaders []string
}

// Verifier checks request credentials. It is immutable and safe for concurrent use.
type Verifier struct {
	mode             Mode
	token            string
	secret           []byte
	tokenHeader      string
	signatureHeaders []string
}

// New validates cfg against its mode and builds a Verifier.
func New(cfg Config) (*Verifier, error) {
	if cfg.Mode < Open || cfg.Mode > Both {
		return nil, fmt.Errorf("unknown verification mode %d", int(cfg.Mode))
	}
	if cfg.Mode.checksToken() && cfg.Token == "" {
		return nil, fmt.Errorf("mode %s requires a token", cfg.Mode)
	}
	if cfg.Mode.checksSignature() && cfg.Secret == "" {
		return nil, fmt.Errorf("mode %s requires a shared secret", cfg.Mode)
	}

	v := &Verifier{
		mode:             cfg.Mode,
		token:            cfg.Token,
		secret:           []byte(cfg.Secret),
		tokenHeader:      cfg.TokenHeader,
		signatureHeaders: cfg.SignatureHeaders,
	}
	if v.tokenHeader == "" {
		v.tokenHeader = DefaultTokenHeader
	}
	if len(v.signatureHeaders) == 0 {
		v.signatureHeaders = DefaultSignatureHeaders
	}
	return v, nil
}

// Mode reports the configured mode.
func (v *Verifier) Mode() Mode { return v.mode }

// Verify returns nil when the request is authorized and an *AuthError otherwise.
// body must be the exact raw bytes received. When both checks are enabled the
// token is checked first.
func (v *Verifier) Verify(body []byte, header http.Header) error {
	if v.mode.checksToken() {
		if err := v.checkToken(header); err != nil {
			return err
		}
	}
	if v.mode.checksSignature() {
		if err := v.checkSignature(body, header); err != nil {
			return err
		}
	}
	return nil
}

func (v *Verifier) checkToken(header http.Header) error {
	provided := bearerToken(header.Get("Authorization"))
	if provided == "" {
		provided = header.Get(v.tokenHeader)
	}
	if provided == "" || !ConstantTimeEqual(provided, v.token) {
		return &AuthError{Reason: ReasonTokenInvalid}
	}
	return nil
}

func (v *Verifier) checkSignature(body []byte, header http.Header) error {
	provided := signatureFromHeader(header, v.signatureHeaders)
	if provided == "" {
		return &AuthError{Reason: ReasonSignatureMissing}
	}
	if !ConstantTimeEqual(provided, sign(v.secret, body)) {
		return &AuthError{Reason: ReasonSignatureInvalid}
	}
	return nil
}

func bearerToken(auth string) string {
	const scheme = "bearer "
	if len(auth) >= len(scheme) && strings.EqualFold(auth[:len(scheme)], scheme) {
		return auth[len(scheme):]
	}
	return ""
}

// signatureFromHeader returns the hex digest from the first header present,
// with any "sha256=" prefix removed.
func signatureFromHeader(header http.Header, names []string) string {
	for _, name := range names {
		if values := header.Values(name); len(values) > 0 {
			return strings.TrimPrefix(strings.TrimSpace(values[0]), signaturePrefix)
		}
	}
	return ""
}

// Sign returns the lowercase hex HMAC-SHA256 of body keyed by secret.
func Sign(secret string, body []byte) string {
	return sign([]byte(secret), body)
}

func sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
