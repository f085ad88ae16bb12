package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe. It never touches the database.
func Health(c echo.Context) error {
	return ok(c, http.StatusOK, "server is running", echo.Map{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
