package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/invites/internal/helpers"
	"github.com/joshua-takyi/invites/internal/models"
	"github.com/supabase-community/gotrue-go/types"
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger logs one line per HTTP request, tagged with the request id
// and, on host routes, the authenticated host and event.
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}

		c.Next()

		// Bridge sockets log their own lifecycle.
		if c.IsWebsocket() {
			return
		}

		requestID, _ := c.Get("request_id")
		attrs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if host, ok := Host(c); ok {
			attrs = append(attrs, "host_id", host.UserID)
		}
		if eventID := c.Param("eventId"); eventID != "" {
			attrs = append(attrs, "event_id", eventID)
		}

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "HTTP Request", attrs...)
	}
}

// ErrorHandler provides centralized error handling
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Handle any errors that occurred during request processing
		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			requestID, _ := c.Get("request_id")

			logger.Error("Request error",
				"request_id", requestID,
				"error", err.Error(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)

			// Don't return error details in production
			if !c.Writer.Written() {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":      "Internal server error",
					"request_id": requestID,
				})
			}
		}
	}
}

const userKey = "user"

// TokenRefresher exchanges a refresh token for a new session. The Supabase
// auth client satisfies it.
type TokenRefresher interface {
	RefreshToken(refreshToken string) (*types.TokenResponse, error)
}

type TokenValidator func(token string) (*helpers.CustomClaims, error)

// bearerToken reads the host token from the Authorization header, falling
// back to the access_token cookie set by the dashboard.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	token, err := c.Cookie("access_token")
	if err != nil {
		return ""
	}
	return token
}

func unauthorized(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse(reason))
}

func AuthMiddleware(refresher TokenRefresher, validate TokenValidator, secureCookies bool, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			unauthorized(c, "JWT token not found")
			return
		}

		claims, err := validate(token)
		if err != nil {
			// Token validation failed, try to refresh
			refreshToken, refreshErr := c.Cookie("refresh_token")
			if refreshErr != nil || refresher == nil {
				logger.Debug("Rejected host token", "error", err)
				unauthorized(c, "Unauthorized access")
				return
			}

			tokenRes, refreshErr := refresher.RefreshToken(refreshToken)
			if refreshErr != nil || tokenRes == nil || tokenRes.AccessToken == "" {
				logger.Error("Token refresh failed", "error", refreshErr)
				unauthorized(c, "Token expired and refresh failed")
				return
			}

			logger.Info("Token refreshed successfully",
				"user_id", tokenRes.User.ID,
				"expires_in", tokenRes.ExpiresIn,
			)
			c.SetCookie("access_token", tokenRes.AccessToken, tokenRes.ExpiresIn, "/", "", secureCookies, true)
			c.SetCookie("refresh_token", tokenRes.RefreshToken, 3600*24*30, "/", "", secureCookies, true)

			token = tokenRes.AccessToken
			claims, err = validate(token)
			if err != nil {
				unauthorized(c, "Refreshed token validation failed")
				return
			}
		}

		if _, err := uuid.Parse(claims.Subject); err != nil {
			logger.Warn("Invalid user ID in token", "user_id", claims.Subject, "error", err)
			unauthorized(c, "Unauthorized access")
			return
		}

		c.Set(userKey, &helpers.HostClaims{
			CustomClaims: claims,
			UserID:       claims.Subject,
			Email:        claims.Email,
			AccessToken:  token,
		})
		c.Next()
	}
}

// Host returns the claims stored by AuthMiddleware.
func Host(c *gin.Context) (*helpers.HostClaims, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*helpers.HostClaims)
	return claims, ok
}
