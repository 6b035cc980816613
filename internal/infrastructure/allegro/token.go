// Package allegro is the marketplace adapter: OAuth token lifecycle and the
// offer REST client.
package allegro

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// defaultLifetime applies when neither the token response nor the JWT
// carries an expiry.
const defaultLifetime = 12 * time.Hour

// Token is an access token with its refresh token (user grants only)
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes,omitempty"`
	UserName     string    `json:"user_name,omitempty"`
}

// Valid reports whether the token can be used at now, leaving margin before expiry
func (t *Token) Valid(now time.Time, margin time.Duration) bool {
	return t != nil && t.AccessToken != "" && now.Before(t.Expiry.Add(-margin))
}

// tokenClaims is the subset of marketplace JWT claims read without verification
type tokenClaims struct {
	UserName string           `json:"user_name"`
	Scope    jwt.ClaimStrings `json:"scope"`
	jwt.RegisteredClaims
}

func fromOAuth2(t *oauth2.Token, now time.Time) *Token {
	tok := &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
	if scope, ok := t.Extra("scope").(string); ok && scope != "" {
		tok.Scopes = strings.Fields(scope)
	}

	claims := parseClaims(t.AccessToken)
	if claims != nil {
		tok.UserName = claims.UserName
		if len(tok.Scopes) == 0 {
			tok.Scopes = []string(claims.Scope)
		}
		if tok.Expiry.IsZero() && claims.ExpiresAt != nil {
			tok.Expiry = claims.ExpiresAt.Time
		}
	}
	if tok.Expiry.IsZero() {
		tok.Expiry = now.Add(defaultLifetime)
	}
	return tok
}

// parseClaims decodes an access token JWT without checking its signature.
// Opaque tokens yield nil.
func parseClaims(accessToken string) *tokenClaims {
	if strings.Count(accessToken, ".") != 2 {
		return nil
	}
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil
	}
	return claims
}
