package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken  = errors.New("missing token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrInactive      = errors.New("principal is inactive")
	ErrForbidden     = errors.New("insufficient role")
	ErrNoSecret      = errors.New("jwt secret is not configured")
	ErrUnknownRole   = errors.New("unknown role")
	errSigningMethod = errors.New("unexpected signing method")
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBlocked  Status = "blocked"
)

type Claims struct {
	Sub    string `json:"sub"`
	Role   Role   `json:"role"`
	Status Status `json:"status,omitempty"`
	jwt.RegisteredClaims
}

// Principal - проверенный владелец токена.
type Principal struct {
	ID     string
	Role   Role
	Status Status
}

func (p *Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Authenticator выпускает и проверяет HS256-токены.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Enabled - без секрета защищённые маршруты закрыты полностью.
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

func (a *Authenticator) CreateToken(sub string, role Role, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", ErrNoSecret
	}
	if !role.Valid() {
		return "", ErrUnknownRole
	}
	claims := Claims{
		Sub:    sub,
		Role:   role,
		Status: StatusActive,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(a.now()),
			ExpiresAt: jwt.NewNumericDate(a.now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Authenticate:
//   - проверяет подпись и срок действия;
//   - требует известную роль;
//   - отклоняет неактивных и заблокированных.
func (a *Authenticator) Authenticate(tokenStr string) (*Principal, error) {
	if !a.Enabled() {
		return nil, ErrNoSecret
	}
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errSigningMethod
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.Sub == "" {
		return nil, ErrInvalidToken
	}

	if !c.Role.Valid() {
		return nil, ErrUnknownRole
	}
	if c.Status == StatusInactive || c.Status == StatusBlocked {
		return nil, ErrInactive
	}

	status := c.Status
	if status == "" {
		status = StatusActive
	}
	return &Principal{ID: c.Sub, Role: c.Role, Status: status}, nil
}

// RequireAdmin - Authenticate плюс проверка роли.
func (a *Authenticator) RequireAdmin(tokenStr string) (*Principal, error) {
	p, err := a.Authenticate(tokenStr)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	return p, nil
}

// BearerToken вырезает токен из заголовка "Bearer <token>".
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
