package http

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// corsMiddleware builds a CORS middleware from a comma-separated origin
// list. BackyDB's admin surface is server-to-server by default, so CORS is
// disabled unless origins are explicitly configured (§6 has no CORS key;
// this is purely an operability add-on, same posture as the teacher's own
// createCORSMiddleware).
func corsMiddleware(allowOrigins string, logger *slog.Logger) gin.HandlerFunc {
	origins := parseOrigins(allowOrigins)
	if len(origins) == 0 {
		return nil
	}

	logger.Info("admin http cors enabled", slog.Any("origins", origins))

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET"},
		AllowHeaders:     []string{"Content-Type"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
