// Package auth implements account registration, login, JWT session
// middleware, and the subscription gate that fences the search endpoints.
package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"nichescout/db"
	"nichescout/httputil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const maxPasswordLen = 72 // bcrypt truncates at 72 bytes

// TokenTTL is how long issued session tokens stay valid.
const TokenTTL = 30 * 24 * time.Hour

type contextKey string

// UserIDKey is the context key used to store the authenticated user ID.
const UserIDKey contextKey = "user_id"

// ExtractUserID returns the user ID from the request context, if present.
func ExtractUserID(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value(UserIDKey).(string)
	return uid, ok && uid != ""
}

// Handler holds dependencies for authentication endpoints.
type Handler struct {
	DB        *db.CompatDB
	JWTSecret string
}

// User is the public account shape returned by the auth endpoints.
type User struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Email               string  `json:"email"`
	IsSubscribed        bool    `json:"isSubscribed"`
	SubscriptionStatus  string  `json:"subscriptionStatus"`
	SubscriptionEndDate *string `json:"subscriptionEndDate"`
}

// RegisterRequest is the JSON body for POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a new account and returns a session token.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	httputil.MaxBody(r, httputil.DefaultBodyLimit)
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, 400, map[string]string{"error": "invalid request body"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" {
		httputil.WriteJSON(w, 400, map[string]string{"error": "name is required"})
		return
	}
	if len(req.Password) < 8 {
		httputil.WriteJSON(w, 400, map[string]string{"error": "password must be at least 8 characters"})
		return
	}
	if len(req.Password) > maxPasswordLen {
		httputil.WriteJSON(w, 400, map[string]string{"error": "password must not exceed 72 characters"})
		return
	}
	if !strings.Contains(req.Email, "@") || len(req.Email) < 5 {
		httputil.WriteJSON(w, 400, map[string]string{"error": "a valid email address is required"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "internal error"})
		return
	}

	userID := uuid.New().String()
	_, err = h.DB.ExecContext(r.Context(),
		`INSERT INTO users (id, name, email, password_hash) VALUES (?, ?, ?, ?)`,
		userID, req.Name, req.Email, string(hash))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate") {
			httputil.WriteJSON(w, 409, map[string]string{"error": "email already registered"})
			return
		}
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to create user"})
		return
	}

	token, err := GenerateToken(userID, h.JWTSecret)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to generate token"})
		return
	}

	httputil.WriteJSON(w, 201, map[string]interface{}{
		"token": token,
		"user": User{
			ID:                 userID,
			Name:               req.Name,
			Email:              req.Email,
			SubscriptionStatus: "inactive",
		},
	})
}

// LoginRequest is the JSON body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin authenticates by email and password.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	httputil.MaxBody(r, httputil.DefaultBodyLimit)
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, 400, map[string]string{"error": "invalid request body"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var userID, hash string
	err := h.DB.QueryRowContext(r.Context(),
		`SELECT id, password_hash FROM users WHERE email = ?`, req.Email,
	).Scan(&userID, &hash)
	if err != nil {
		httputil.WriteJSON(w, 401, map[string]string{"error": "invalid credentials"})
		return
	}

	if len(req.Password) > maxPasswordLen {
		httputil.WriteJSON(w, 401, map[string]string{"error": "invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		httputil.WriteJSON(w, 401, map[string]string{"error": "invalid credentials"})
		return
	}

	user, err := h.loadUser(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to load user"})
		return
	}
	token, err := GenerateToken(userID, h.JWTSecret)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to generate token"})
		return
	}
	httputil.WriteJSON(w, 200, map[string]interface{}{"token": token, "user": user})
}

// HandleMe returns the authenticated user's account.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := ExtractUserID(r)
	user, err := h.loadUser(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": "user not found"})
		return
	}
	httputil.WriteJSON(w, 200, user)
}

// HandleCheckSubscription reports whether the authenticated user may use
// the gated search endpoints.
func (h *Handler) HandleCheckSubscription(w http.ResponseWriter, r *http.Request) {
	userID, _ := ExtractUserID(r)
	user, err := h.loadUser(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": "user not found"})
		return
	}
	httputil.WriteJSON(w, 200, map[string]interface{}{
		"subscribed":          user.IsSubscribed && user.SubscriptionStatus == "active",
		"status":              user.SubscriptionStatus,
		"subscriptionEndDate": user.SubscriptionEndDate,
	})
}

func (h *Handler) loadUser(ctx context.Context, userID string) (User, error) {
	var u User
	var endDate sql.NullString
	err := h.DB.QueryRowContext(ctx,
		`SELECT id, name, email, is_subscribed, subscription_status, subscription_end_date
		 FROM users WHERE id = ?`, userID,
	).Scan(&u.ID, &u.Name, &u.Email, &u.IsSubscribed, &u.SubscriptionStatus, &endDate)
	if err != nil {
		return User{}, err
	}
	if endDate.Valid {
		u.SubscriptionEndDate = &endDate.String
	}
	return u, nil
}

// GenerateToken creates a signed session JWT for the given user ID.
func GenerateToken(userID, secret string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": now.Add(TokenTTL).Unix(),
		"iat": now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ExtractUserIDFromToken parses the Bearer JWT from a request using the given secret.
func ExtractUserIDFromToken(r *http.Request, secret string) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}

	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil || !token.Valid {
		return ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return ""
	}
	return sub
}

// AuthMiddleware requires a valid JWT and puts the user ID into the context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := ExtractUserIDFromToken(r, h.JWTSecret)
		if userID == "" {
			httputil.WriteJSON(w, 401, map[string]string{"error": "unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSubscription runs after AuthMiddleware and rejects users without
// an active subscription. Answers 402 so the frontend can route straight
// to the paywall.
func (h *Handler) RequireSubscription(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := ExtractUserID(r)
		if !ok {
			httputil.WriteJSON(w, 401, map[string]string{"error": "unauthorized"})
			return
		}
		var subscribed bool
		var status string
		err := h.DB.QueryRowContext(r.Context(),
			`SELECT is_subscribed, subscription_status FROM users WHERE id = ?`, userID,
		).Scan(&subscribed, &status)
		if err != nil {
			httputil.WriteJSON(w, 401, map[string]string{"error": "unauthorized"})
			return
		}
		if !subscribed || status != "active" {
			httputil.WriteJSON(w, 402, map[string]string{"error": "active subscription required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
