package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/phibia-app/phibia-go/internal/datastore"
)

// HistoryResponse is one page of history.
type HistoryResponse struct {
	Data   []datastore.Detection `json:"data"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

func (s *Server) historyDisabled(c echo.Context) error {
	return s.HandleError(c, nil, "History is disabled", http.StatusServiceUnavailable)
}

// ListHistory handles GET /api/v1/history?species=&since=&limit=&offset=.
// since is RFC 3339 or YYYY-MM-DD.
func (s *Server) ListHistory(c echo.Context) error {
	if s.history == nil {
		return s.historyDisabled(c)
	}

	opts := datastore.ListOptions{Species: c.QueryParam("species")}

	if v := c.QueryParam("since"); v != "" {
		since, err := parseSince(v)
		if err != nil {
			return s.HandleError(c, err, "Invalid since parameter", http.StatusBadRequest)
		}
		opts.Since = since
	}
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		v := c.QueryParam(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return s.HandleError(c, err, "Invalid "+name+" parameter", http.StatusBadRequest)
		}
		*dst = n
	}

	entries, err := s.history.List(c.Request().Context(), opts)
	if err != nil {
		return s.HandleError(c, err, "Failed to read history", statusFor(err))
	}
	limit := min(opts.Limit, datastore.MaxListLimit)
	if limit == 0 {
		limit = datastore.DefaultListLimit
	}
	return c.JSON(http.StatusOK, HistoryResponse{Data: entries, Limit: limit, Offset: opts.Offset})
}

// HistoryStats handles GET /api/v1/history/stats.
func (s *Server) HistoryStats(c echo.Context) error {
	if s.history == nil {
		return s.historyDisabled(c)
	}
	counts, err := s.history.CountBySpecies(c.Request().Context())
	if err != nil {
		return s.HandleError(c, err, "Failed to read history", statusFor(err))
	}
	return c.JSON(http.StatusOK, counts)
}

// GetHistoryEntry handles GET /api/v1/history/:id.
func (s *Server) GetHistoryEntry(c echo.Context) error {
	if s.history == nil {
		return s.historyDisabled(c)
	}
	entry, err := s.history.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.HandleError(c, err, "History entry not found", statusFor(err))
	}
	return c.JSON(http.StatusOK, entry)
}

// DeleteHistoryEntry handles DELETE /api/v1/history/:id.
func (s *Server) DeleteHistoryEntry(c echo.Context) error {
	if s.history == nil {
		return s.historyDisabled(c)
	}
	if err := s.history.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return s.HandleError(c, err, "Failed to delete history entry", statusFor(err))
	}
	return c.NoContent(http.StatusNoContent)
}

func parseSince(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, v, time.Local)
}
