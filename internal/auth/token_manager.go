package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/motorlot/marketplace-api/internal/platform/identifier"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
)

// Claims are what a validated token vouches for. Role is informational
// only; request authorization reads the stored user.
type Claims struct {
	TokenID   string
	UserID    string
	Role      Role
	SessionID string
	TokenType TokenType
	ExpiresAt time.Time
}

type tokenClaims struct {
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair contains an access/refresh pair with expiries.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenManager signs and validates HS256 session tokens.
type TokenManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

type TokenOption func(*TokenManager)

// WithTokenClock sets the issuance clock.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewTokenManager(secret, issuer string, accessTTL, refreshTTL time.Duration, opts ...TokenOption) (*TokenManager, error) {
	switch {
	case secret == "":
		return nil, errors.New("token secret must not be empty")
	case issuer == "":
		return nil, errors.New("token issuer must not be empty")
	case accessTTL <= 0 || refreshTTL <= 0:
		return nil, errors.New("token ttl values must be positive")
	case refreshTTL < accessTTL:
		return nil, errors.New("refresh ttl must not be shorter than access ttl")
	}

	m := &TokenManager{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// IssueTokenPair signs an access and a refresh token bound to one session.
func (m *TokenManager) IssueTokenPair(user User, sessionID string) (TokenPair, error) {
	if user.ID == "" || sessionID == "" {
		return TokenPair{}, ErrInvalidToken
	}

	issuedAt := m.now()
	pair := TokenPair{
		AccessExpiresAt:  issuedAt.Add(m.accessTTL),
		RefreshExpiresAt: issuedAt.Add(m.refreshTTL),
	}

	var err error
	if pair.AccessToken, err = m.sign(user, sessionID, TokenTypeAccess, issuedAt, pair.AccessExpiresAt); err != nil {
		return TokenPair{}, err
	}
	if pair.RefreshToken, err = m.sign(user, sessionID, TokenTypeRefresh, issuedAt, pair.RefreshExpiresAt); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (m *TokenManager) sign(user User, sessionID string, tokenType TokenType, issuedAt, expiresAt time.Time) (string, error) {
	claims := tokenClaims{
		Role:      user.Role.String(),
		SessionID: sessionID,
		TokenType: string(tokenType),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        identifier.New("tok"),
			Issuer:    m.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseAndValidate checks signature, issuer, expiry and token type.
func (m *TokenManager) ParseAndValidate(rawToken string, expectedType TokenType) (Claims, error) {
	var claims tokenClaims
	token, err := m.parser.ParseWithClaims(rawToken, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return Claims{}, ErrTokenExpired
	}
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Issuer != m.issuer || claims.Subject == "" || claims.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}
	if claims.TokenType != string(expectedType) {
		return Claims{}, ErrInvalidTokenType
	}

	role, err := ParseRole(claims.Role)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		TokenID:   claims.ID,
		UserID:    claims.Subject,
		Role:      role,
		SessionID: claims.SessionID,
		TokenType: expectedType,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// HashToken is how refresh tokens are stored on sessions.
func HashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
