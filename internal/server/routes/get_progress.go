package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/lexgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/lexgraph/internal/util"
	"github.com/OFFIS-RIT/lexgraph/pkg/graph"

	"github.com/labstack/echo/v4"
)

func GetProgressHandler(c echo.Context) error {
	type response struct {
		Fragments    int               `json:"fragments"`
		ProcessedIDs int               `json:"processed_ids"`
		StoreVersion string            `json:"store_version,omitempty"`
		Progress     *util.RunProgress `json:"progress,omitempty"`
	}

	app := c.(*middleware.AppContext).App
	frags, err := app.Fragments.Load(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	processed := len(graph.AlreadyProcessed(frags))
	res := response{
		Fragments:    len(frags),
		ProcessedIDs: processed,
		StoreVersion: app.Fragments.Version(),
	}
	if app.TotalRecords > 0 {
		p := util.BuildRunProgress(processed, app.TotalRecords)
		res.Progress = &p
	}
	return c.JSON(http.StatusOK, res)
}
