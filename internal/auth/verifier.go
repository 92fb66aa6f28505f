// Package auth issues and verifies manager bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"foodcart/internal/config"
)

// RoleManager may use the back-office endpoints.
const RoleManager = "manager"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type Principal struct {
	Subject string
	Role    string
}

// Claims is the JWT payload issued by Login.
type Claims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}

// Verifier validates HS256 JWTs. In mode "off" every request is treated as a
// manager and no token is required.
type Verifier struct {
	Mode         string
	secret       []byte
	username     string
	passwordHash []byte
	ttl          time.Duration
}

func NewVerifier(cfg config.AuthConfig) *Verifier {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Verifier{
		Mode:         strings.ToLower(cfg.Mode),
		secret:       []byte(cfg.Secret),
		username:     cfg.ManagerUsername,
		passwordHash: []byte(cfg.ManagerPasswordHash),
		ttl:          ttl,
	}
}

// Enabled reports whether tokens are checked.
func (v *Verifier) Enabled() bool { return v != nil && v.Mode == "hmac" }

// Login checks the manager credentials against the configured bcrypt hash
// and returns a signed token.
func (v *Verifier) Login(username, password string) (string, time.Time, error) {
	if !v.Enabled() || len(v.passwordHash) == 0 || username != v.username {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(v.passwordHash, []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return v.Issue(username, RoleManager)
}

// Issue signs a token for subject with the given role.
func (v *Verifier) Issue(subject, role string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(v.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		StandardClaims: jwt.StandardClaims{
			Subject:   subject,
			IssuedAt:  now.Unix(),
			ExpiresAt: exp.Unix(),
		},
	})
	s, err := tok.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

func (v *Verifier) Verify(token string) (Principal, error) {
	if !v.Enabled() {
		return Principal{Subject: "anonymous", Role: RoleManager}, nil
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected alg %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	role := strings.ToLower(claims.Role)
	if role == "" {
		role = "user"
	}
	return Principal{Subject: claims.Subject, Role: role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
