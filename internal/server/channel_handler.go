package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"channel_pulse/internal/analytics"
	"channel_pulse/internal/auth"
	"channel_pulse/internal/service"
)

// defaultAnalyticsDays is the window used when the query omits one.
const defaultAnalyticsDays = 7

// ChannelHandler serves channel discovery, subscription control,
// message windows and analytics.
type ChannelHandler struct {
	sync      *service.ChannelSync
	subs      *service.Subscriptions
	channels  service.ChannelStore
	messages  service.MessageStore
	backfill  service.Backfiller
	analytics *analytics.Service
}

func NewChannelHandler(sync *service.ChannelSync, subs *service.Subscriptions, channels service.ChannelStore, messages service.MessageStore, backfill service.Backfiller, analytics *analytics.Service) *ChannelHandler {
	return &ChannelHandler{
		sync:      sync,
		subs:      subs,
		channels:  channels,
		messages:  messages,
		backfill:  backfill,
		analytics: analytics,
	}
}

func (h *ChannelHandler) Register(e *echo.Echo) {
	e.POST("/channels/sync", h.syncChannels)
	e.GET("/channels", h.list)
	e.POST("/channels/:id/activate", h.activate)
	e.POST("/channels/:id/deactivate", h.deactivate)
	e.GET("/channels/:id/messages", h.listMessages)
	e.GET("/channels/:id/analytics", h.channelAnalytics)
}

func (h *ChannelHandler) syncChannels(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}

	stats, err := h.sync.Sync(c.Request().Context(), userID)
	if err != nil {
		return mapGatewayError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *ChannelHandler) list(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}

	channels, err := h.channels.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list channels")
	}
	return c.JSON(http.StatusOK, channels)
}

func (h *ChannelHandler) activate(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}

	err = h.subs.Activate(c.Request().Context(), userID, c.Param("id"))
	if errors.Is(err, service.ErrSubscriptionLimit) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to activate subscription")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ChannelHandler) deactivate(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}

	if err := h.subs.Deactivate(c.Request().Context(), userID, c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to deactivate subscription")
	}
	return c.NoContent(http.StatusNoContent)
}

// listMessages backfills the requested window first, so the response
// reflects everything the platform has for it, then reads from storage.
func (h *ChannelHandler) listMessages(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}

	start, end, err := parseWindow(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	channelID := c.Param("id")

	if err := h.backfill.EnsureRange(ctx, userID, channelID, start, end); err != nil {
		return mapGatewayError(err)
	}

	msgs, err := h.messages.ListRange(ctx, channelID, start, end)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list messages")
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *ChannelHandler) channelAnalytics(c echo.Context) error {
	if _, err := auth.UserIDFromContext(c); err != nil {
		return err
	}

	days := defaultAnalyticsDays
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a positive integer")
		}
		days = parsed
	}

	ctx := c.Request().Context()
	channelID := c.Param("id")
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	switch metric := c.QueryParam("metric"); metric {
	case "trend", "":
		points, err := h.analytics.SentimentTrend(ctx, channelID, start, end)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute trend")
		}
		return c.JSON(http.StatusOK, points)
	case "authors":
		authors, err := h.analytics.ActiveAuthors(ctx, channelID, start, end)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to list authors")
		}
		return c.JSON(http.StatusOK, map[string]any{"authors": authors})
	case "churn":
		stats, err := h.analytics.ChurnRate(ctx, channelID, start, end)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute churn")
		}
		return c.JSON(http.StatusOK, stats)
	case "health":
		report, err := h.analytics.HealthScore(ctx, channelID, start, end)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute health score")
		}
		return c.JSON(http.StatusOK, report)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown metric "+metric)
	}
}

func parseWindow(c echo.Context) (time.Time, time.Time, error) {
	rawStart := c.QueryParam("start")
	rawEnd := c.QueryParam("end")

	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)

	if rawStart != "" {
		parsed, err := time.Parse(time.RFC3339, rawStart)
		if err != nil {
			return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "start must be RFC3339")
		}
		start = parsed
	}
	if rawEnd != "" {
		parsed, err := time.Parse(time.RFC3339, rawEnd)
		if err != nil {
			return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "end must be RFC3339")
		}
		end = parsed
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "start must be before end")
	}
	return start, end, nil
}
