package appointment

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bookline/bookline/internal/platform/metrics"
	"github.com/bookline/bookline/pkg/pagination"
)

// ScopeHeader optionally restricts a request to one provider's
// appointments. Populating it is the job of whatever fronts this API; the
// handlers only honor it.
const ScopeHeader = "X-Provider-Scope"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/availability", h.Availability)
	api.GET("/calendar", h.Calendar)

	appts := api.Group("/appointments")
	appts.GET("", h.List)
	appts.POST("", h.Create)
	appts.GET("/conflict", h.CheckConflict)
	appts.GET("/:id", h.Get)
	appts.PUT("/:id", h.Update)
	appts.PATCH("/:id/status", h.ChangeStatus)
	appts.DELETE("/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return h.writeError(c, err)
	}
	metrics.AppointmentsBooked.Inc()
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	scope, id, err := h.scopeAndID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), scope, id)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	scope, err := scopeFrom(c)
	if err != nil {
		return err
	}
	var f ListFilter
	if v := c.QueryParam("provider_id"); v != "" {
		if f.ProviderID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid provider_id")
		}
	}
	if v := c.QueryParam("customer_id"); v != "" {
		if f.CustomerID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid customer_id")
		}
	}
	if v := c.QueryParam("status"); v != "" {
		if !ValidStatuses[v] {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		f.Status = v
	}
	if v := c.QueryParam("from"); v != "" {
		if f.From, err = h.parseTime(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from")
		}
	}
	if v := c.QueryParam("to"); v != "" {
		if f.To, err = h.parseTime(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to")
		}
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), scope, f, pg.Limit, pg.Offset)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	scope, id, err := h.scopeAndID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Update(c.Request().Context(), scope, id, in)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	scope, id, err := h.scopeAndID(c)
	if err != nil {
		return err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.ChangeStatus(c.Request().Context(), scope, id, body.Status)
	if err != nil {
		return h.writeError(c, err)
	}
	if InertStatuses[a.Status] {
		metrics.AppointmentsCancelled.Inc()
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	scope, id, err := h.scopeAndID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), scope, id); err != nil {
		return h.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CheckConflict(c echo.Context) error {
	providerID, err := strconv.ParseInt(c.QueryParam("provider_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid provider_id")
	}
	start, err := h.parseTime(c.QueryParam("start"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start")
	}
	duration, err := strconv.Atoi(c.QueryParam("duration_minutes"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid duration_minutes")
	}
	var excludeID int64
	if v := c.QueryParam("exclude_id"); v != "" {
		if excludeID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid exclude_id")
		}
	}

	hit, err := h.svc.CheckConflict(c.Request().Context(), providerID, start, duration, excludeID)
	if err != nil {
		return h.writeError(c, err)
	}
	if hit == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"conflict": false})
	}
	w := hit.Window()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conflict": true,
		"appointment": map[string]interface{}{
			"id":    hit.ID,
			"start": w.Start,
			"end":   w.End,
		},
	})
}

func (h *Handler) Availability(c echo.Context) error {
	metrics.AvailabilityRequests.Inc()

	providerID, err := strconv.ParseInt(c.QueryParam("provider_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid provider_id")
	}
	date, err := time.ParseInLocation("2006-01-02", c.QueryParam("date"), h.svc.Location())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
	}

	q := AvailabilityQuery{ProviderID: providerID, Date: date, BufferMinutes: -1}
	if v := c.QueryParam("duration_minutes"); v != "" {
		if q.DurationMinutes, err = strconv.Atoi(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid duration_minutes")
		}
	}
	if v := c.QueryParam("step_minutes"); v != "" {
		if q.StepMinutes, err = strconv.Atoi(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid step_minutes")
		}
	}
	if v := c.QueryParam("buffer_minutes"); v != "" {
		if q.BufferMinutes, err = strconv.Atoi(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid buffer_minutes")
		}
	}
	if v := c.QueryParam("service_id"); v != "" {
		sid, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid service_id")
		}
		q.ServiceID = &sid
	}

	day, err := h.svc.Availability(c.Request().Context(), q)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, day)
}

func (h *Handler) Calendar(c echo.Context) error {
	scope, err := scopeFrom(c)
	if err != nil {
		return err
	}
	date, err := time.ParseInLocation("2006-01-02", c.QueryParam("date"), h.svc.Location())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
	}
	var providerID int64
	if v := c.QueryParam("provider_id"); v != "" {
		if providerID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid provider_id")
		}
	}
	entries, err := h.svc.Calendar(c.Request().Context(), scope, date, providerID)
	if err != nil {
		return h.writeError(c, err)
	}
	if entries == nil {
		entries = []*CalendarEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// writeError maps domain errors onto HTTP responses. Conflicts answer with
// the offending appointment's id and window so the caller can offer
// alternatives.
func (h *Handler) writeError(c echo.Context, err error) error {
	var ce *ConflictError
	switch {
	case errors.As(err, &ce):
		metrics.BookingConflicts.Inc()
		w := ce.Existing.Window()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"message": ce.Error(),
			"conflict": map[string]interface{}{
				"id":    ce.Existing.ID,
				"start": w.Start,
				"end":   w.End,
			},
		})
	case errors.Is(err, ErrConflict):
		metrics.BookingConflicts.Inc()
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) scopeAndID(c echo.Context) (Scope, int64, error) {
	scope, err := scopeFrom(c)
	if err != nil {
		return Scope{}, 0, err
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return Scope{}, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return scope, id, nil
}

func scopeFrom(c echo.Context) (Scope, error) {
	v := c.Request().Header.Get(ScopeHeader)
	if v == "" {
		return Scope{}, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return Scope{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+ScopeHeader+" header")
	}
	return Scope{ProviderID: id}, nil
}

// parseTime accepts RFC 3339 or a bare date, the latter read in the
// scheduling location.
func (h *Handler) parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", v, h.svc.Location())
}
