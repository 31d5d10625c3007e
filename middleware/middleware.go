package middleware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"goimomi/globals"
	"goimomi/models"
	"goimomi/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// JWT claims
type Claims struct {
	Username  string `json:"username"`
	Staff     bool   `json:"staff"`
	Superuser bool   `json:"superuser"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject of the token.
func (c *Claims) UserID() uint {
	id, _ := strconv.ParseUint(c.Subject, 10, 64)
	return uint(id)
}

// Auth issues and checks staff access tokens.
type Auth struct {
	Secret []byte
	TTL    time.Duration
}

func NewAuth(secret []byte, ttl time.Duration) *Auth {
	return &Auth{Secret: secret, TTL: ttl}
}

// IssueToken signs an HS256 token for u.
func (a *Auth) IssueToken(u models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Username:  u.Username,
		Staff:     u.IsStaff,
		Superuser: u.IsSuperuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

// ValidateJWT parses a raw token string (no "Bearer " prefix).
func (a *Auth) ValidateJWT(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("invalid token")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("unauthorized: token invalid")
	}
	return claims, nil
}

// tokenFromRequest reads the bearer header; websocket upgrades may pass
// ?token= because browsers cannot set headers on the handshake.
func tokenFromRequest(r *http.Request) (string, error) {
	if websocket.IsWebSocketUpgrade(r) {
		if t := r.URL.Query().Get("token"); t != "" {
			return t, nil
		}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("Missing token")
	}
	if !strings.HasPrefix(header, "Bearer ") || len(header) < 8 {
		return "", errors.New("Invalid token format")
	}
	return header[7:], nil
}

func withClaims(ctx context.Context, c *Claims) context.Context {
	ctx = context.WithValue(ctx, globals.UsernameKey, c.Username)
	ctx = context.WithValue(ctx, globals.StaffKey, c.Staff)
	return context.WithValue(ctx, globals.SuperuserKey, c.Superuser)
}

func (a *Auth) Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		raw, err := tokenFromRequest(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := a.ValidateJWT(raw)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next(w, r.WithContext(withClaims(r.Context(), claims)), ps)
	}
}

// RequireStaff authenticates and then rejects non-staff tokens with 403.
func (a *Auth) RequireStaff(next httprouter.Handle) httprouter.Handle {
	return a.Authenticate(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if staff, _ := r.Context().Value(globals.StaffKey).(bool); !staff {
			utils.RespondWithError(w, http.StatusForbidden, "Staff access required")
			return
		}
		next(w, r, ps)
	})
}

func (a *Auth) RequireSuperuser(next httprouter.Handle) httprouter.Handle {
	return a.Authenticate(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if su, _ := r.Context().Value(globals.SuperuserKey).(bool); !su {
			utils.RespondWithError(w, http.StatusForbidden, "Superuser access required")
			return
		}
		next(w, r, ps)
	})
}

// OptionalAuth attaches identity when a valid token is present and proceeds regardless.
func (a *Auth) OptionalAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if raw, err := tokenFromRequest(r); err == nil {
			if claims, err := a.ValidateJWT(raw); err == nil {
				r = r.WithContext(withClaims(r.Context(), claims))
			}
		}
		next(w, r, ps)
	}
}

// IsStaff reports whether the request carries a staff identity.
func IsStaff(r *http.Request) bool {
	staff, _ := r.Context().Value(globals.StaffKey).(bool)
	return staff
}

// SecurityHeaders applies a set of recommended HTTP security headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		if !strings.HasPrefix(r.URL.Path, "/static/") {
			w.Header().Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

// Logging logs each request method, path, remote address, and duration.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s from %s – %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}
