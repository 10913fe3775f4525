package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"channel_pulse/internal/auth"
	"channel_pulse/internal/gateway"
	"channel_pulse/internal/service"
	"channel_pulse/internal/telegram"
)

// loginChallengeTTL bounds how long a sent code can be confirmed.
const loginChallengeTTL = 10 * time.Minute

// AuthHandler drives the two-step login: request a code for a phone
// number, then confirm it. Confirming yields the access token; the
// protocol session itself is persisted by the pool on connect.
type AuthHandler struct {
	invoker   service.Invoker
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthHandler(invoker service.Invoker, jwtSecret string, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		invoker:   invoker,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/login", h.login)
	e.POST("/auth/confirm", h.confirm)
}

type loginRequest struct {
	UserID string `json:"user_id"`
	Phone  string `json:"phone"`
}

type loginResponse struct {
	LoginToken string    `json:"login_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (h *AuthHandler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" || req.Phone == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and phone are required")
	}

	resp, err := h.invoker.Invoke(c.Request().Context(), req.UserID, telegram.Request{
		Method: telegram.MethodSendCode,
		Params: map[string]any{"phone_number": req.Phone},
	})
	if err != nil {
		return mapGatewayError(err)
	}
	if resp.Code == nil {
		return echo.NewHTTPError(http.StatusBadGateway, "no login challenge returned")
	}

	token, expiresAt, err := auth.GenerateLoginToken(auth.LoginChallenge{
		UserID:        req.UserID,
		Phone:         req.Phone,
		PhoneCodeHash: resp.Code.PhoneCodeHash,
	}, h.jwtSecret, loginChallengeTTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue login token")
	}

	return c.JSON(http.StatusOK, loginResponse{LoginToken: token, ExpiresAt: expiresAt})
}

type confirmRequest struct {
	LoginToken string `json:"login_token"`
	Code       string `json:"code"`
}

type confirmResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) confirm(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.LoginToken == "" || req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "login_token and code are required")
	}

	challenge, err := auth.ParseLoginToken(req.LoginToken, h.jwtSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired login token")
	}

	_, err = h.invoker.Invoke(c.Request().Context(), challenge.UserID, telegram.Request{
		Method: telegram.MethodSignIn,
		Params: map[string]any{
			"phone_number":    challenge.Phone,
			"phone_code_hash": challenge.PhoneCodeHash,
			"phone_code":      req.Code,
		},
	})
	if err != nil {
		return mapGatewayError(err)
	}

	token, expiresAt, err := auth.GenerateToken(challenge.UserID, h.jwtSecret, h.tokenTTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue token")
	}

	return c.JSON(http.StatusOK, confirmResponse{Token: token, ExpiresAt: expiresAt})
}

// mapGatewayError translates the typed error taxonomy into HTTP status
// codes.
func mapGatewayError(err error) error {
	var flood *telegram.FloodWaitError
	switch {
	case errors.Is(err, gateway.ErrReauthRequired):
		return echo.NewHTTPError(http.StatusUnauthorized, "session expired, please log in again")
	case errors.Is(err, telegram.ErrTargetUnavailable):
		return echo.NewHTTPError(http.StatusNotFound, "channel not found or inaccessible")
	case errors.As(err, &flood):
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited, try again later")
	default:
		return echo.NewHTTPError(http.StatusBadGateway, "upstream call failed")
	}
}
