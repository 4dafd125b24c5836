package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"live-quiz-service/internal/domain"
)

// Authenticator resolves a bearer token into a principal.
type Authenticator interface {
	Principal(token string) (domain.Principal, error)
}

// Claims carry the caller's role next to the standard subject.
type Claims struct {
	jwt.StandardClaims
	Role domain.Role `json:"role"`
}

// JWT validates HS256 tokens signed with a shared secret.
type JWT struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWT(secret, issuer string) *JWT {
	return &JWT{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Sign issues a token for identity with the given role. Used by the token command and tests.
func (a *JWT) Sign(identity string, role domain.Role, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   identity,
			Issuer:    a.issuer,
			IssuedAt:  now.Unix(),
			NotBefore: now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *JWT) Principal(token string) (domain.Principal, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	claims := parsed.Claims.(*Claims)
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	switch claims.Role {
	case domain.RolePlayer, domain.RolePresenter, domain.RoleAdmin:
	default:
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	return domain.Principal{Role: claims.Role, Identity: claims.Subject}, nil
}

// Open trusts whatever role the client claims. Local development only: the token is read
// as "role:identity" and an empty token is a player.
type Open struct{}

func (Open) Principal(token string) (domain.Principal, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return domain.Principal{Role: domain.RolePlayer}, nil
	}
	role, identity, _ := strings.Cut(token, ":")
	switch domain.Role(role) {
	case domain.RolePlayer, domain.RolePresenter, domain.RoleAdmin:
		return domain.Principal{Role: domain.Role(role), Identity: identity}, nil
	}
	return domain.Principal{}, domain.ErrUnauthenticated
}
