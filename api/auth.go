package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Ayush8555/SVD-college-sub000/models"
	"github.com/golang-jwt/jwt/v5"
)

// CallerClaims bearer token claims. The subject is the actor ID.
type CallerClaims struct {
	// Role the actor role
	Role models.ActorRoleENUMType `json:"role"`
	jwt.RegisteredClaims
}

type callerContextKey struct{}

/*
IssueToken sign a bearer token for an actor

	@param secret []byte - HMAC secret
	@param actorID string - the actor
	@param role models.ActorRoleENUMType - the actor role
	@param ttl time.Duration - token lifetime
	@returns the signed token
*/
func IssueToken(
	secret []byte, actorID string, role models.ActorRoleENUMType, ttl time.Duration,
) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, CallerClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token [%w]", err)
	}
	return signed, nil
}

// authenticate resolve the bearer token into the caller identity
func (h *restHandler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || raw == "" {
			h.writeUnauthenticated(w, r, errors.New("missing bearer token"))
			return
		}

		claims := &CallerClaims{}
		if _, err := jwt.ParseWithClaims(
			raw,
			claims,
			func(*jwt.Token) (interface{}, error) { return h.tokenSecret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		); err != nil {
			h.writeUnauthenticated(w, r, err)
			return
		}

		caller := models.RequestContext{
			ActorID:       claims.Subject,
			ActorRole:     claims.Role,
			CallerAddress: remoteHost(r),
			UserAgent:     r.UserAgent(),
		}
		if err := h.validator.Struct(&caller); err != nil {
			h.writeUnauthenticated(w, r, fmt.Errorf("token identity is not valid [%w]", err))
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerContextKey{}, caller)))
	})
}

// callerOf the identity resolved by authenticate
func callerOf(r *http.Request) models.RequestContext {
	caller, _ := r.Context().Value(callerContextKey{}).(models.RequestContext)
	return caller
}

// remoteHost the caller address without the port
func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
