package usecase

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/domain/model"
	"github.com/docpack/docpack/pkg/domain/types"
)

// TokenIssuer is the iss claim of admin session tokens
const TokenIssuer = "docpack"

// DefaultSessionTTL is the lifetime of an admin session
const DefaultSessionTTL = 24 * time.Hour

// Auth implements interfaces.AuthUseCase with a single configured admin
type Auth struct {
	email    string
	password string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

var _ interfaces.AuthUseCase = (*Auth)(nil)

// AuthOption configures Auth
type AuthOption func(*Auth)

// WithSessionTTL sets the token lifetime
func WithSessionTTL(d time.Duration) AuthOption {
	return func(x *Auth) {
		x.ttl = d
	}
}

// WithAuthClock overrides time.Now
func WithAuthClock(now func() time.Time) AuthOption {
	return func(x *Auth) {
		x.now = now
	}
}

// NewAuth creates the auth use case. password is either plain text or a
// bcrypt hash ("$2a$...", "$2b$...").
func NewAuth(email, password string, secret []byte, opts ...AuthOption) (*Auth, error) {
	if email == "" || password == "" {
		return nil, goerr.New("admin email and password are required")
	}
	if len(secret) == 0 {
		return nil, goerr.New("session secret is required")
	}

	a := &Auth{
		email:    email,
		password: password,
		secret:   secret,
		ttl:      DefaultSessionTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Login checks credentials and issues a signed session
func (x *Auth) Login(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, goerr.New("Email & Password required", goerr.T(types.ErrTagBadRequest))
	}

	emailOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(email)), []byte(strings.ToLower(x.email))) == 1
	if !x.checkPassword(password) || !emailOK {
		ctxlog.From(ctx).Warn("Admin login rejected", "email", email)
		return nil, goerr.New("Invalid credentials", goerr.V("email", email), goerr.T(types.ErrTagUnauthorized))
	}

	now := x.now()
	expiresAt := now.Add(x.ttl).Truncate(time.Second)
	tok, err := jwt.NewBuilder().
		Issuer(TokenIssuer).
		Subject(x.email).
		IssuedAt(now).
		Expiration(expiresAt).
		Claim("email", x.email).
		Claim("role", model.RoleAdmin).
		Build()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build session token")
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, x.secret))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to sign session token")
	}

	ctxlog.From(ctx).Info("Admin logged in", "email", x.email)
	return &model.Session{
		Email:     x.email,
		Role:      model.RoleAdmin,
		ExpiresAt: expiresAt,
		Token:     string(signed),
	}, nil
}

func (x *Auth) checkPassword(password string) bool {
	if strings.HasPrefix(x.password, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(x.password), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(x.password)) == 1
}

// Verify parses and validates a session token
func (x *Auth) Verify(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, goerr.New("missing session token", goerr.T(types.ErrTagUnauthorized))
	}

	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, x.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithClock(jwt.ClockFunc(x.now)),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid session token", goerr.T(types.ErrTagUnauthorized))
	}

	email, _ := tok.Get("email")
	role, _ := tok.Get("role")
	session := &model.Session{
		Email:     claimString(email),
		Role:      claimString(role),
		ExpiresAt: tok.Expiration(),
		Token:     token,
	}
	if session.Role != model.RoleAdmin {
		return nil, goerr.New("session is not an admin session",
			goerr.V("role", session.Role), goerr.T(types.ErrTagUnauthorized))
	}

	return session, nil
}

func claimString(v any) string {
	s, _ := v.(string)
	return s
}
