// Package server exposes the HTTP surface: login, channel discovery
// and subscription control, message windows and analytics.
package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"channel_pulse/internal/auth"
)

type Handler interface {
	Register(e *echo.Echo)
}

type Server struct {
	echo *echo.Echo
	addr string
}

func New(addr, jwtSecret string, handlers ...Handler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(auth.JWTMiddleware(jwtSecret, func(c echo.Context) bool {
		switch c.Request().URL.Path {
		case "/ping", "/auth/login", "/auth/confirm":
			return true
		}
		return false
	}))

	e.GET("/ping", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	for _, h := range handlers {
		h.Register(e)
	}

	return &Server{echo: e, addr: addr}
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
