package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userIDKey contextKey = "user_id"

func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// GenerateJWT issues a signed token for the given user.
func GenerateJWT(userID, secret string, expiry time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(expiry).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Auth validates the Bearer token and stashes the user ID in the request
// context. Missing or invalid credentials end the request here.
func Auth(jwtSecret string) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		auth := ctx.Header("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeUnauthorized(ctx, "authentication required")
			return
		}

		tokenStr := strings.TrimPrefix(auth, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			writeUnauthorized(ctx, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeUnauthorized(ctx, "invalid claims")
			return
		}
		userID, _ := claims["sub"].(string)
		if userID == "" {
			writeUnauthorized(ctx, "invalid claims")
			return
		}

		echoCtx := humaecho.Unwrap(ctx)
		r := echoCtx.Request()
		echoCtx.SetRequest(r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
		next(ctx)
	}
}

// writeUnauthorized ends the request with the same {success, error} body
// shape the handlers' error factory produces, so 401s read like every other
// API error.
func writeUnauthorized(ctx huma.Context, msg string) {
	ctx.SetStatus(http.StatusUnauthorized)
	ctx.SetHeader("Content-Type", "application/json")
	_ = json.NewEncoder(ctx.BodyWriter()).Encode(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{Success: false, Error: msg})
}
