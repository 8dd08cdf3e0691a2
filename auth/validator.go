package auth

import (
	"context"
	"errors"
	"fmt"

	"genix/config"
	"genix/util"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// Key for user ID in context
const UserIDKey contextKey = "user_id"
const TokenClaimsKey contextKey = "token_claims"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingSub   = errors.New("token has no subject")
)

// Result is what a verified identity token yields
type Result struct {
	UserID string
	Claims jwt.MapClaims
}

// Validator verifies identity provider tokens
type Validator struct {
	keyfunc jwt.Keyfunc
	parser  *jwt.Parser
}

// NewJWKSValidator fetches signing keys from the configured JWKS endpoint.
// ctx ends the background key refresh.
func NewJWKSValidator(ctx context.Context, conf config.AuthConfig) (*Validator, error) {
	k, err := keyfunc.NewDefaultCtx(ctx, []string{conf.JWKSUri})
	if err != nil {
		util.LogInfo("Failed to create a keyfunc.Keyfunc from the server's URL.", logrus.Fields{"error": err})
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", conf.JWKSUri, err)
	}
	return NewValidator(k.Keyfunc, conf.Audience, conf.Issuer), nil
}

// NewValidator builds a Validator around any key source. Empty audience or
// issuer skip that check.
func NewValidator(kf jwt.Keyfunc, audience, issuer string) *Validator {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Validator{keyfunc: kf, parser: jwt.NewParser(opts...)}
}

// ValidateToken parses and verifies a raw bearer token
func (v *Validator) ValidateToken(tokenStr string) (*Result, error) {
	token, err := v.parser.Parse(tokenStr, v.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, _ := claims["sub"].(string)
	if userID == "" {
		return nil, ErrMissingSub
	}
	return &Result{UserID: userID, Claims: claims}, nil
}
