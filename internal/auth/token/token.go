// Package token signs and verifies the Ed25519 tokens that gate invites
// and realtime connections.
package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/ytchou/focus-squad/internal/platform/errors"
	sessionservice "github.com/ytchou/focus-squad/internal/session/service"
)

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	Issuer     string `env:"FOCUS_SQUAD_TOKEN_ISSUER"`
	Audience   string `env:"FOCUS_SQUAD_TOKEN_AUDIENCE"`
	PrivateKey string `env:"FOCUS_SQUAD_TOKEN_PRIVATE_KEY"`
}

// Config defines how tokens are signed and verified.
type Config struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	Now      func() time.Time
}

// LoadConfigFromEnv reads token signing configuration. The private key is
// a base64-encoded Ed25519 seed or full private key.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw tokenEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse token env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	privateKey := strings.TrimSpace(raw.PrivateKey)
	if issuer == "" {
		return Config{}, fmt.Errorf("FOCUS_SQUAD_TOKEN_ISSUER is required")
	}
	if audience == "" {
		return Config{}, fmt.Errorf("FOCUS_SQUAD_TOKEN_AUDIENCE is required")
	}
	if privateKey == "" {
		return Config{}, fmt.Errorf("FOCUS_SQUAD_TOKEN_PRIVATE_KEY is required")
	}
	keyBytes, err := decodeBase64(privateKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode token private key: %w", err)
	}
	var key ed25519.PrivateKey
	switch len(keyBytes) {
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(keyBytes)
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(keyBytes)
	default:
		return Config{}, fmt.Errorf("token private key must be %d or %d bytes", ed25519.SeedSize, ed25519.PrivateKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return Config{Issuer: issuer, Audience: audience, Key: key, Now: now}, nil
}

// Signer issues and verifies signed tokens.
type Signer struct {
	issuer    string
	audience  string
	key       ed25519.PrivateKey
	publicKey ed25519.PublicKey
	now       func() time.Time
}

// NewSigner creates a signer from a validated config.
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	if cfg.Audience == "" {
		return nil, fmt.Errorf("audience is required")
	}
	if len(cfg.Key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Signer{
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		key:       cfg.Key,
		publicKey: cfg.Key.Public().(ed25519.PublicKey),
		now:       cfg.Now,
	}, nil
}

// inviteClaims is the internal claims type used for JWT parsing.
type inviteClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
}

// Issue signs an invite token for a session. The token id becomes the
// jti claim and keys the single-use record.
func (s *Signer) Issue(sessionID, tokenID string, expiresAt time.Time) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	tokenID = strings.TrimSpace(tokenID)
	if sessionID == "" {
		return "", fmt.Errorf("session id is required")
	}
	if tokenID == "" {
		return "", fmt.Errorf("token id is required")
	}

	now := s.now().UTC()
	claims := inviteClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt.UTC()),
		},
		SessionID: sessionID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign invite token: %w", err)
	}
	return signed, nil
}

// Verify parses an invite token and validates signature, issuer,
// audience and expiry.
func (s *Signer) Verify(token string) (sessionservice.InviteClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return sessionservice.InviteClaims{}, apperrors.New(apperrors.CodeInviteInvalid, "invite token is required")
	}

	var parsed inviteClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return s.publicKey, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return sessionservice.InviteClaims{}, mapJWTError(err)
	}

	if parsed.Issuer != s.issuer {
		return sessionservice.InviteClaims{}, apperrors.New(apperrors.CodeInviteMismatch, "invite issuer mismatch")
	}
	if !audienceContains(parsed.Audience, s.audience) {
		return sessionservice.InviteClaims{}, apperrors.New(apperrors.CodeInviteMismatch, "invite audience mismatch")
	}
	if parsed.ID == "" || strings.TrimSpace(parsed.SessionID) == "" {
		return sessionservice.InviteClaims{}, apperrors.New(apperrors.CodeInviteInvalid, "invite claims are incomplete")
	}
	if parsed.ExpiresAt == nil {
		return sessionservice.InviteClaims{}, apperrors.New(apperrors.CodeInviteInvalid, "invite exp is required")
	}
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(s.now().UTC()) {
		return sessionservice.InviteClaims{}, apperrors.New(apperrors.CodeInviteExpired, "invite expired")
	}

	return sessionservice.InviteClaims{
		SessionID: parsed.SessionID,
		TokenID:   parsed.ID,
		ExpiresAt: exp,
	}, nil
}

// IssueUser signs a bearer token identifying a user for realtime
// connections.
func (s *Signer) IssueUser(userID string, expiresAt time.Time) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}

	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt.UTC()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign user token: %w", err)
	}
	return signed, nil
}

// VerifyUser parses a bearer token and returns the user id it names.
func (s *Signer) VerifyUser(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.New(apperrors.CodeInviteInvalid, "token is required")
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return s.publicKey, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", mapJWTError(err)
	}

	if parsed.Issuer != s.issuer || !audienceContains(parsed.Audience, s.audience) {
		return "", apperrors.New(apperrors.CodeInviteMismatch, "token issuer or audience mismatch")
	}
	if parsed.Subject == "" {
		return "", apperrors.New(apperrors.CodeInviteInvalid, "token subject is required")
	}
	if parsed.ExpiresAt == nil || !parsed.ExpiresAt.Time.UTC().After(s.now().UTC()) {
		return "", apperrors.New(apperrors.CodeInviteExpired, "token expired")
	}
	return parsed.Subject, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeInviteInvalid, "token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeInviteInvalid, "token alg is invalid")
	}
	return apperrors.New(apperrors.CodeInviteInvalid, "token is invalid")
}

// audienceContains reports whether the audience list contains the value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}

var _ sessionservice.InviteSigner = (*Signer)(nil)
