package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	claimSubject       = "sub"
	claimUserID        = "user_id"
	claimType          = "typ"
	claimPhone         = "phone"
	claimPhoneCodeHash = "phone_code_hash"
	loginTokenType     = "login_challenge"
)

// JWTMiddleware returns a JWT auth middleware configured for HS256 tokens.
func JWTMiddleware(secret string, skipper middleware.Skipper) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: "HS256",
		TokenLookup:   "header:Authorization:Bearer ",
		Skipper:       skipper,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return jwt.MapClaims{}
		},
	})
}

// UserIDFromContext extracts the user id from JWT claims.
func UserIDFromContext(c echo.Context) (string, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil || !token.Valid {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	if userID := claimString(claims, claimUserID); userID != "" {
		return userID, nil
	}
	if userID := claimString(claims, claimSubject); userID != "" {
		return userID, nil
	}
	return "", echo.NewHTTPError(http.StatusUnauthorized, "user id missing")
}

// GenerateToken creates a signed JWT for the user.
func GenerateToken(userID, secret string, expiresIn time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, fmt.Errorf("jwt secret is required")
	}
	if expiresIn <= 0 {
		return "", time.Time{}, fmt.Errorf("jwt expires in must be positive")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(expiresIn)
	claims := jwt.MapClaims{
		claimSubject: userID,
		claimUserID:  userID,
		"iat":        now.Unix(),
		"exp":        expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// LoginChallenge carries the state between requesting a login code and
// confirming it. It never grants access on its own.
type LoginChallenge struct {
	UserID        string
	Phone         string
	PhoneCodeHash string
}

// GenerateLoginToken creates a short-lived signed JWT holding a login
// challenge.
func GenerateLoginToken(ch LoginChallenge, secret string, expiresIn time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(ch.UserID) == "" {
		return "", time.Time{}, fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(ch.Phone) == "" {
		return "", time.Time{}, fmt.Errorf("phone is required")
	}
	if strings.TrimSpace(ch.PhoneCodeHash) == "" {
		return "", time.Time{}, fmt.Errorf("phone code hash is required")
	}
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, fmt.Errorf("jwt secret is required")
	}
	if expiresIn <= 0 {
		return "", time.Time{}, fmt.Errorf("jwt expires in must be positive")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(expiresIn)
	claims := jwt.MapClaims{
		claimType:          loginTokenType,
		claimUserID:        ch.UserID,
		claimPhone:         ch.Phone,
		claimPhoneCodeHash: ch.PhoneCodeHash,
		"iat":              now.Unix(),
		"exp":              expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseLoginToken validates a login challenge token and returns its
// contents.
func ParseLoginToken(raw, secret string) (LoginChallenge, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return LoginChallenge{}, fmt.Errorf("invalid login token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return LoginChallenge{}, fmt.Errorf("invalid login token claims")
	}
	if claimString(claims, claimType) != loginTokenType {
		return LoginChallenge{}, fmt.Errorf("not a login token")
	}

	ch := LoginChallenge{
		UserID:        claimString(claims, claimUserID),
		Phone:         claimString(claims, claimPhone),
		PhoneCodeHash: claimString(claims, claimPhoneCodeHash),
	}
	if ch.UserID == "" || ch.Phone == "" || ch.PhoneCodeHash == "" {
		return LoginChallenge{}, fmt.Errorf("login token incomplete")
	}
	return ch, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	raw, ok := claims[key]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(raw)
	}
}
