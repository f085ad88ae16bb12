package utils // package utils provides helpers for session tokens and password hashing

import (
    "errors"  // errors wraps parse failures
    "strconv" // strconv renders and parses the numeric subject
    "time"    // time utilities for issue and expiry timestamps

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// ErrInvalidToken is returned for any token that fails parsing, signature
// or expiry verification.  Callers should not distinguish further.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims is the payload of a session token: the standard subject,
// issued-at and expiry claims plus the user's role.
type SessionClaims struct {
    Role string `json:"role"`
    jwt.RegisteredClaims
}

// SessionToken is a signed token together with its expiry.
type SessionToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewSessionToken builds and signs an HS256 JWT for a user.  The subject
// is the decimal user ID; iat is now and exp is now+ttl.
func NewSessionToken(secret string, userID uint64, role string, ttl time.Duration, now time.Time) (SessionToken, error) {
    now = now.UTC()
    exp := now.Add(ttl)
    claims := SessionClaims{
        Role: role,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   strconv.FormatUint(userID, 10),
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return SessionToken{}, err
    }
    return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies raw with the shared secret and returns the
// user ID and claims.  Only HS256 is accepted and exp is mandatory.
func ParseSessionToken(secret, raw string) (uint64, *SessionClaims, error) {
    claims := &SessionClaims{}
    tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil || !tok.Valid {
        return 0, nil, ErrInvalidToken
    }
    id, err := strconv.ParseUint(claims.Subject, 10, 64)
    if err != nil || id == 0 {
        return 0, nil, ErrInvalidToken
    }
    return id, claims, nil
}
