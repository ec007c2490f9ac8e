package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/lexgraph/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// GetFragmentHandler returns the fragment extracted from record :id, for
// example "Article:21A".
func GetFragmentHandler(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing record id"})
	}

	app := c.(*middleware.AppContext).App
	frags, err := app.Fragments.Load(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	for _, f := range frags {
		if f.RecordID() == id {
			return c.JSON(http.StatusOK, f)
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"error": "fragment not found"})
}
