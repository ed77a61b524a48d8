package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/identity/pkg/config"
	"github.com/Abraxas-365/identity/pkg/iam/grant"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/Abraxas-365/identity/pkg/kvstore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const usedRefreshPrefix = "auth:refresh:used:"

// JWTService implements TokenService with HS256 JWTs. Refresh tokens are
// single use: the jti of every consumed token is kept in the KV store until
// the token would have expired anyway.
type JWTService struct {
	secretKey       []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	issuer          string
	store           kvstore.Store
	now             func() time.Time
}

var _ TokenService = (*JWTService)(nil)

// NewJWTService creates a new JWT service
func NewJWTService(secretKey string, accessTokenTTL, refreshTokenTTL time.Duration, issuer string, store kvstore.Store) *JWTService {
	if accessTokenTTL == 0 {
		accessTokenTTL = 60 * time.Minute
	}
	if refreshTokenTTL == 0 {
		refreshTokenTTL = 15 * time.Minute
	}
	if issuer == "" {
		issuer = "identity"
	}

	return &JWTService{
		secretKey:       []byte(secretKey),
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
		issuer:          issuer,
		store:           store,
		now:             time.Now,
	}
}

func NewJWTServiceFromConfig(cfg *config.JWTConfig, store kvstore.Store) *JWTService {
	return NewJWTService(cfg.SecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.Issuer, store)
}

// WithClock replaces time.Now; used by tests.
func (j *JWTService) WithClock(now func() time.Time) *JWTService {
	j.now = now
	return j
}

// JWTClaims is the payload of both token kinds.
type JWTClaims struct {
	Name         string   `json:"name,omitempty"`
	Role         string   `json:"role,omitempty"`
	Scope        string   `json:"scope,omitempty"`
	ClientGroups []string `json:"client_group,omitempty"`
	TokenUse     string   `json:"token_use"`
	jwt.RegisteredClaims
}

// Issue mints an access token and, when withRefresh is set, a refresh token.
func (j *JWTService) Issue(_ context.Context, p *grant.Principal, withRefresh bool) (*TokenResponse, error) {
	access, err := j.sign(p, TokenUseAccess, j.accessTokenTTL)
	if err != nil {
		return nil, err
	}

	resp := &TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(j.accessTokenTTL / time.Second),
		Scope:       strings.Join(p.Scopes, " "),
	}

	if withRefresh {
		refresh, err := j.sign(p, TokenUseRefresh, j.refreshTokenTTL)
		if err != nil {
			return nil, err
		}
		resp.RefreshToken = refresh
	}
	return resp, nil
}

func (j *JWTService) sign(p *grant.Principal, use string, ttl time.Duration) (string, error) {
	now := j.now()
	name, _ := p.Claim(grant.ClaimName)

	claims := JWTClaims{
		Name:         name,
		Role:         string(p.Role),
		Scope:        strings.Join(p.Scopes, " "),
		ClientGroups: p.Claims[grant.ClaimClientGroup],
		TokenUse:     use,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    j.issuer,
			Subject:   p.Subject,
			Audience:  p.Resources,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", ErrTokenGenerationFailed().WithCause(err)
	}
	return signed, nil
}

func (j *JWTService) parse(tokenString, use string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	},
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid claims")
	}
	if claims.TokenUse != use {
		return nil, fmt.Errorf("token_use %q, want %q", claims.TokenUse, use)
	}
	return claims, nil
}

// Authenticate validates a refresh token, marks it consumed and returns the
// principal it was issued for.
func (j *JWTService) Authenticate(ctx context.Context, refreshToken string) (*grant.Principal, error) {
	claims, err := j.parse(refreshToken, TokenUseRefresh)
	if err != nil {
		return nil, ErrInvalidRefreshToken().WithCause(err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidRefreshToken()
	}

	remaining := claims.ExpiresAt.Time.Sub(j.now())
	if remaining < time.Second {
		remaining = time.Second
	}
	first, err := j.store.SetNX(ctx, usedRefreshPrefix+claims.ID, claims.Subject, remaining)
	if err != nil {
		return nil, err
	}
	if !first {
		return nil, ErrRefreshTokenReused()
	}

	p := &grant.Principal{
		Subject:     claims.Subject,
		DisplayName: claims.Name,
		Role:        kernel.Role(claims.Role),
		Scopes:      strings.Fields(claims.Scope),
		Resources:   claims.Audience,
	}
	p.SetClaim(grant.ClaimSubject, claims.Subject)
	if claims.Name != "" {
		p.SetClaim(grant.ClaimName, claims.Name)
	}
	if claims.Role != "" {
		p.SetClaim(grant.ClaimRole, claims.Role)
	}
	p.SetClaim(grant.ClaimClientGroup, claims.ClientGroups...)
	return p, nil
}

// ValidateAccessToken validates an access token and returns its auth context.
func (j *JWTService) ValidateAccessToken(tokenString string) (*kernel.AuthContext, error) {
	claims, err := j.parse(tokenString, TokenUseAccess)
	if err != nil {
		return nil, ErrTokenValidationFailed().WithCause(err)
	}
	return &kernel.AuthContext{
		Subject: claims.Subject,
		Name:    claims.Name,
		Role:    kernel.Role(claims.Role),
		Scopes:  strings.Fields(claims.Scope),
	}, nil
}
