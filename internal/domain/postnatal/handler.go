package postnatal

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/healthprogress/internal/domain/condition"
	"github.com/ehr/healthprogress/internal/platform/auth"
	"github.com/ehr/healthprogress/internal/platform/validation"
)

const Prefix = "/api/postnatal"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group(Prefix)
	g.POST("/profile", h.SaveProfile)
	g.GET("/profile", h.GetOwnProfile)
	g.GET("/profile/:patient_id", h.GetProfile)
}

func (h *Handler) SaveProfile(c echo.Context) error {
	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return he
		}
		return invalid([]condition.FieldError{{Reason: "body must be a JSON object"}})
	}
	req.Clean()
	if err := c.Validate(&req); err != nil {
		fields := validation.Fields(err)
		if fields == nil {
			return err
		}
		out := make([]condition.FieldError, len(fields))
		for i, f := range fields {
			out[i] = condition.FieldError(f)
		}
		return invalid(out)
	}
	if !auth.CanAccessPatient(c.Request().Context(), req.PatientID) {
		return ErrForbidden
	}

	p, err := req.Profile()
	if err != nil {
		return invalid([]condition.FieldError{{Path: "delivery_date", Reason: err.Error()}})
	}
	saved, err := h.svc.SaveProfile(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, saved)
}

// GetOwnProfile serves patient-role callers from their token claim.
func (h *Handler) GetOwnProfile(c echo.Context) error {
	id, ok := auth.PatientIDFromContext(c.Request().Context())
	if !ok {
		return invalid([]condition.FieldError{{Path: "patient_id", Reason: "is required"}})
	}
	return h.respond(c, id)
}

func (h *Handler) GetProfile(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("patient_id"), 10, 64)
	if err != nil || id <= 0 {
		return invalid([]condition.FieldError{{Path: "patient_id", Reason: "must be a positive integer"}})
	}
	return h.respond(c, id)
}

func (h *Handler) respond(c echo.Context, patientID int64) error {
	if !auth.CanAccessPatient(c.Request().Context(), patientID) {
		return ErrForbidden
	}
	p, err := h.svc.GetProfile(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func invalid(fields []condition.FieldError) error {
	return &condition.ValidationError{Fields: fields}
}

// ClassifyError maps profile errors onto HTTP responses.
func ClassifyError(err error) (int, interface{}, bool) {
	var verr *condition.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, map[string]interface{}{"error": "invalid payload", "fields": verr.Fields}, true
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, map[string]string{"error": ErrNotFound.Error()}, true
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, map[string]string{"error": ErrForbidden.Error()}, true
	case errors.Is(err, ErrStorageFault):
		return http.StatusInternalServerError, map[string]string{"error": ErrStorageFault.Error()}, true
	}
	return 0, nil, false
}
