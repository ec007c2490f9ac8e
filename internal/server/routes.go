package server

import (
	"crypto/subtle"

	"github.com/OFFIS-RIT/lexgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RegisterRoutes mounts all handlers. A non-empty apiKey protects /api with
// a bearer key.
func RegisterRoutes(e *echo.Echo, apiKey string) {
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	api := e.Group("/api")
	if apiKey != "" {
		api.Use(middleware.KeyAuth(func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1, nil
		}))
	}

	api.GET("/progress", routes.GetProgressHandler)
	api.GET("/fragments/:id", routes.GetFragmentHandler)
	api.POST("/ingest", routes.PostIngestHandler)
}
