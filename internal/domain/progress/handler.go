package progress

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/healthprogress/internal/domain/condition"
	"github.com/ehr/healthprogress/internal/platform/auth"
	"github.com/ehr/healthprogress/pkg/pagination"
)

// AggregatePrefix is where the cross-condition routes are mounted.
const AggregatePrefix = "/api/health-progress"

type Handler struct {
	registry *condition.Registry
	svc      *Service
	agg      *Aggregator
}

func NewHandler(registry *condition.Registry, svc *Service, agg *Aggregator) *Handler {
	return &Handler{registry: registry, svc: svc, agg: agg}
}

// RegisterRoutes mounts one entries tree per registered condition under its
// prefix, then the aggregate routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	for _, spec := range h.registry.Specs() {
		h.registerCondition(api.Group(spec.Prefix), spec.Type)
	}

	agg := api.Group(AggregatePrefix)
	agg.Any("/:condition/entries", unknownCondition)
	agg.Any("/:condition/entries/*", unknownCondition)
	agg.GET("/all", h.ListAll)
	agg.GET("/conditions", h.ListConditions)
	agg.GET("/patients/:patient_id/conditions", h.PatientConditions)

	staff := auth.RequireRole(auth.StaffRoles...)
	agg.GET("/stats", h.Stats, staff)
	agg.GET("/recent", h.Recent, staff)
}

// registerCondition is the router template. The condition tag is bound here
// and never read from the request.
func (h *Handler) registerCondition(g *echo.Group, conditionType string) {
	g.POST("/entries", h.submit(conditionType))
	g.GET("/entries", h.list(conditionType))
	g.GET("/entries/patient/:patient_id", h.history(conditionType))
	g.GET("/entries/:patient_id/:date", h.exists(conditionType))
	g.GET("/entries/:id", h.get(conditionType))
	g.DELETE("/entries/:id", h.remove(conditionType), auth.RequireRole(auth.RoleAdmin))

	// Legacy paths still called by older clients.
	g.GET("/check/:patient_id/:date", h.exists(conditionType))
	g.GET("/patient/:patient_id", h.history(conditionType))
}

// unknownCondition answers entry routes under the aggregate prefix whose
// condition segment matches no registered condition.
func unknownCondition(c echo.Context) error {
	return ErrUnknownCondition
}

func (h *Handler) submit(conditionType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var raw map[string]interface{}
		dec := json.NewDecoder(c.Request().Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				return he
			}
			return invalid("", "body must be a JSON object")
		}
		if raw == nil {
			return invalid("", "body must be a JSON object")
		}
		entry, err := h.svc.Submit(c.Request().Context(), conditionType, raw)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, entry)
	}
}

func (h *Handler) list(conditionType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		f, err := filterFromQuery(c)
		if err != nil {
			return err
		}
		out, err := h.svc.List(c.Request().Context(), conditionType, f, pagination.FromContext(c))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, out)
	}
}

func (h *Handler) exists(conditionType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		patientID, err := patientParam(c)
		if err != nil {
			return err
		}
		date, err := condition.ParseDate(c.Param("date"))
		if err != nil {
			return invalid("date", err.Error())
		}
		out, err := h.svc.Exists(c.Request().Context(), conditionType, patientID, date)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, out)
	}
}

func (h *Handler) history(conditionType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		patientID, err := patientParam(c)
		if err != nil {
			return err
		}
		out, err := h.svc.History(c.Request().Context(), conditionType, patientID)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, out)
	}
}

func (h *Handler) get(conditionType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return invalid("id", "must be a positive integer")
		}
		e, err := h.svc.Get(c.Request().Context(), conditionType, id)
		if err != nil {
			return err
		}
		if !auth.CanAccessPatient(c.Request().Context(), e.PatientID) {
			return ErrForbidden
		}
		return c.JSON(http.StatusOK, e)
	}
}

func (h *Handler) remove(conditionType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return invalid("id", "must be a positive integer")
		}
		if err := h.svc.Delete(c.Request().Context(), conditionType, id); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (h *Handler) ListAll(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	feed, err := h.agg.ListAll(c.Request().Context(), FeedQuery{
		ConditionType: c.QueryParam("condition_type"),
		Filter:        f,
		Page:          pagination.FromContext(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, feed)
}

func (h *Handler) Stats(c echo.Context) error {
	st, err := h.agg.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Recent(c echo.Context) error {
	items, err := h.agg.Recent(c.Request().Context(), pagination.Limit(c, DefaultRecent, MaxRecent))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries": items,
		"total":   len(items),
	})
}

func (h *Handler) PatientConditions(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	ov, err := h.agg.PatientConditions(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ov)
}

// conditionInfo is one row of the registry listing.
type conditionInfo struct {
	ConditionType string `json:"condition_type"`
	Prefix        string `json:"prefix"`
	UrgencySource string `json:"urgency_source"`
	Scored        bool   `json:"scored"`
	Strict        bool   `json:"strict"`
}

func (h *Handler) ListConditions(c echo.Context) error {
	specs := h.registry.Specs()
	out := make([]conditionInfo, 0, len(specs))
	for _, s := range specs {
		out = append(out, conditionInfo{
			ConditionType: s.Type,
			Prefix:        s.Prefix,
			UrgencySource: string(s.UrgencySource),
			Scored:        s.Rule != nil,
			Strict:        s.Strict,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conditions": out,
		"total":      len(out),
	})
}

// filterFromQuery reads the patient_id and date query filters. Patient-role
// callers are pinned to their own patient.
func filterFromQuery(c echo.Context) (Filter, error) {
	var f Filter
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, invalid("patient_id", "must be a positive integer")
		}
		f.PatientID = id
	}
	if v := c.QueryParam("date"); v != "" {
		d, err := condition.ParseDate(v)
		if err != nil {
			return f, invalid("date", err.Error())
		}
		f.Date = &d
	}

	scope, restricted := auth.PatientScope(c.Request().Context())
	if restricted {
		if scope <= 0 || (f.PatientID != 0 && f.PatientID != scope) {
			return f, ErrForbidden
		}
		f.PatientID = scope
	}
	return f, nil
}

func patientParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("patient_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("patient_id", "must be a positive integer")
	}
	if !auth.CanAccessPatient(c.Request().Context(), id) {
		return 0, ErrForbidden
	}
	return id, nil
}

func invalid(path, reason string) error {
	return &ValidationError{Fields: []FieldError{{Path: path, Reason: reason}}}
}

// ClassifyError maps the package's error taxonomy onto HTTP responses.
func ClassifyError(err error) (int, interface{}, bool) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, map[string]interface{}{
			"error":  "invalid payload",
			"fields": verr.Fields,
		}, true
	case errors.Is(err, ErrUnknownCondition):
		return http.StatusNotFound, reason(ErrUnknownCondition), true
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, reason(ErrNotFound), true
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, reason(ErrForbidden), true
	case errors.Is(err, ErrStorageConflict):
		return http.StatusServiceUnavailable, reason(ErrStorageConflict), true
	case errors.Is(err, ErrStorageFault):
		return http.StatusInternalServerError, reason(ErrStorageFault), true
	}
	return 0, nil, false
}

func reason(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
