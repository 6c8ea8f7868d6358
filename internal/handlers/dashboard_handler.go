package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/invites/internal/helpers"
	"github.com/joshua-takyi/invites/internal/middleware"
	"github.com/joshua-takyi/invites/internal/models"
	"github.com/joshua-takyi/invites/internal/realtime"
	"github.com/joshua-takyi/invites/internal/services"
)

const streamHeartbeat = 25 * time.Second

type bulkGuestsRequest struct {
	Guests []models.GuestUpdate `json:"guests" binding:"required"`
}

// hostEvent loads the :eventId route parameter for the signed-in host. On
// failure the response has been written.
func hostEvent(c *gin.Context, d *services.DashboardService, logger *slog.Logger) (*models.Event, *helpers.HostClaims, bool) {
	claims, ok := middleware.Host(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse("unauthorized"))
		return nil, nil, false
	}
	event, err := d.EventForHost(c.Request.Context(), helpers.StringTrim(c.Param("eventId")), claims)
	if err != nil {
		respondError(c, logger, err)
		return nil, nil, false
	}
	return event, claims, true
}

func ListHostEvents(d *services.DashboardService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.Host(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse("unauthorized"))
			return
		}
		events, err := d.ListEvents(c.Request.Context(), claims)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, models.ListResponse(events))
	}
}

func EventAnalytics(d *services.DashboardService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, claims, ok := hostEvent(c, d, logger)
		if !ok {
			return
		}
		stats, err := d.Analytics(c.Request.Context(), event, claims.AccessToken)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(stats, ""))
	}
}

func EventWishes(d *services.DashboardService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, claims, ok := hostEvent(c, d, logger)
		if !ok {
			return
		}
		wishes, err := d.AdminWishes(c.Request.Context(), event, claims.AccessToken)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, models.ListResponse(wishes))
	}
}

func ResetGuest(d *services.DashboardService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, claims, ok := hostEvent(c, d, logger)
		if !ok {
			return
		}
		guestID := helpers.StringTrim(c.Param("guestId"))
		if err := d.ResetGuest(c.Request.Context(), event, guestID, claims.AccessToken); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Guest reset successfully"))
	}
}

func BulkUpdateGuests(d *services.DashboardService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, claims, ok := hostEvent(c, d, logger)
		if !ok {
			return
		}
		var req bulkGuestsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
			return
		}
		result, err := d.BulkUpdateGuests(c.Request.Context(), event, req.Guests, claims.AccessToken)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(result, ""))
	}
}

// EventStream pushes realtime notices for one event to the host dashboard as
// server-sent events: the connection status first, then re-fetch notices and
// frame pushes as they happen.
func EventStream(d *services.DashboardService, hub *realtime.Hub, status *realtime.Status, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, _, ok := hostEvent(c, d, logger)
		if !ok {
			return
		}

		notices, unsubscribe := hub.Subscribe(event.ID)
		defer unsubscribe()

		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.SSEvent(realtime.NoticeStatus, status.Snapshot())
		c.Writer.Flush()

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		ctx := c.Request.Context()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case n, ok := <-notices:
				if !ok {
					return false
				}
				c.SSEvent(n.Kind, n.Data)
				return true
			case <-heartbeat.C:
				c.SSEvent("ping", time.Now().Unix())
				return true
			}
		})
		logger.Debug("Dashboard stream closed", "event_id", event.ID)
	}
}

func RealtimeStatus(status *realtime.Status) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.SuccessResponse(status.Snapshot(), ""))
	}
}

func Health(status *realtime.Status) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "OK",
			"service":  "invites-api",
			"realtime": status.Connected(),
		})
	}
}
