package middleware

import (
	"github.com/OFFIS-RIT/lexgraph/internal/queue"
	"github.com/OFFIS-RIT/lexgraph/pkg/fragments"

	"github.com/labstack/echo/v4"
)

// App carries the dependencies handlers need.
type App struct {
	Fragments    fragments.Store
	FragmentsKey string
	// KeyPrefix, when set, lets ingest requests name stores below it
	// besides FragmentsKey.
	KeyPrefix string
	// Queue is nil when no broker is configured.
	Queue queue.Publisher
	// TotalRecords is the size of the input collection, 0 when unknown.
	TotalRecords int
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{c, app})
		}
	}
}
