// Package identity resolves the caller's owner identity from an inbound
// request. Resolvers never fail the request; an unresolvable caller is
// simply absent.
package identity

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/retail-ai-inc/savegame/pkg/config"
	"github.com/sirupsen/logrus"
)

// DefaultHeader carries the caller's openid in WeChat cloud hosting.
const DefaultHeader = "X-WX-OPENID"

type Resolver interface {
	Resolve(r *http.Request) (string, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(r *http.Request) (string, bool)

func (f ResolverFunc) Resolve(r *http.Request) (string, bool) { return f(r) }

// HeaderResolver trusts an identity header injected by the platform gateway.
type HeaderResolver struct {
	Header string
}

func (h HeaderResolver) Resolve(r *http.Request) (string, bool) {
	name := h.Header
	if name == "" {
		name = DefaultHeader
	}
	id := strings.TrimSpace(r.Header.Get(name))
	return id, id != ""
}

// JWTResolver takes the subject of an HS256 bearer token.
type JWTResolver struct {
	secret   []byte
	issuer   string
	audience string
	logger   *logrus.Logger
}

func NewJWTResolver(secret, issuer, audience string, logger *logrus.Logger) *JWTResolver {
	return &JWTResolver{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		logger:   logger,
	}
}

func (j *JWTResolver) Resolve(r *http.Request) (string, bool) {
	raw, ok := bearerToken(r)
	if !ok {
		return "", false
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, opts...)
	if err != nil {
		j.logger.WithError(err).Debug("Rejected bearer token")
		return "", false
	}

	sub := strings.TrimSpace(claims.Subject)
	return sub, sub != ""
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// BearerFirst sends any request carrying an Authorization header to Token,
// whose verdict is final: a forged or expired token leaves the caller absent.
// Fallback, when set, only sees requests without one.
type BearerFirst struct {
	Token    Resolver
	Fallback Resolver
}

func (b BearerFirst) Resolve(r *http.Request) (string, bool) {
	if strings.TrimSpace(r.Header.Get("Authorization")) != "" {
		return b.Token.Resolve(r)
	}
	if b.Fallback == nil {
		return "", false
	}
	return b.Fallback.Resolve(r)
}

// FromConfig builds the request resolver. Without a JWT secret the identity
// header is trusted. With one, bearer tokens decide, and the header is
// consulted for token-less requests only when TrustHeader is set.
func FromConfig(cfg config.IdentityConfig, logger *logrus.Logger) Resolver {
	var header Resolver
	if cfg.Header != "" {
		header = HeaderResolver{Header: cfg.Header}
	}

	if cfg.JWTSecret == "" {
		if header == nil {
			return ResolverFunc(func(*http.Request) (string, bool) { return "", false })
		}
		return header
	}

	res := BearerFirst{Token: NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, logger)}
	if cfg.TrustHeader && header != nil {
		res.Fallback = header
	}
	return res
}
