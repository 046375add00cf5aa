package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/zenazn/goji/web"

	"github.com/janelia-flyem/trainlabels/dvid"
)

// GenerateJWT returns a token for the user signed with the secret key that
// expires after the given number of hours.
func GenerateJWT(secretKey, user string, hours int) (string, error) {
	if secretKey == "" {
		return "", fmt.Errorf("no secret key configured in [auth]")
	}
	claims := jwt.MapClaims{
		"user": user,
		"exp":  time.Now().Add(time.Duration(hours) * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("error with JWT signing: %v", err)
	}
	return tokenString, nil
}

// isAuthorized returns middleware that validates a JWT and sets the c.Env["user"]
// field to the authenticated user.  Help requests pass through.
func isAuthorized(secretKey string) func(c *web.C, h http.Handler) http.Handler {
	return func(c *web.C, h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/help" || r.Method == http.MethodOptions {
				h.ServeHTTP(w, r)
				return
			}
			reqToken := r.Header.Get("Authorization")
			if len(reqToken) == 0 {
				Unauthorized(w, r, "JWT required via Authorization in request header")
				return
			}
			splitToken := strings.Split(reqToken, "Bearer")
			if len(splitToken) != 2 {
				Unauthorized(w, r, "bearer not in proper format")
				return
			}
			reqToken = strings.TrimSpace(splitToken[1])
			if len(reqToken) == 0 {
				Unauthorized(w, r, "requests require JWT authentication")
				return
			}
			token, err := jwt.Parse(reqToken, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("error signing method: %v", token.Header["alg"])
				}
				return []byte(secretKey), nil
			})
			if err != nil {
				Unauthorized(w, r, "error parsing JWT: %v", err)
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !token.Valid {
				Unauthorized(w, r, "failed authorization")
				return
			}
			user, ok := claims["user"].(string)
			if !ok || user == "" {
				Unauthorized(w, r, "user %v is not a simple string", claims["user"])
				return
			}
			if c.Env == nil {
				c.Env = make(map[interface{}]interface{})
			}
			c.Env["user"] = user
			dvid.Debugf("Authorized %s %s for user %q\n", r.Method, r.URL.Path, user)
			h.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
