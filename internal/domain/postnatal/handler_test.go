package postnatal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/healthprogress/internal/platform/auth"
	"github.com/ehr/healthprogress/internal/platform/middleware"
	"github.com/ehr/healthprogress/internal/platform/validation"
)

type mockRepo struct {
	mu       sync.Mutex
	profiles map[int64]*Profile
	err      error
}

func newMockRepo() *mockRepo {
	return &mockRepo{profiles: make(map[int64]*Profile)}
}

func (m *mockRepo) Upsert(_ context.Context, p *Profile) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	now := time.Date(2025, 11, 5, 9, 0, 0, 0, time.UTC)
	saved := *p
	saved.CreatedAt, saved.UpdatedAt = now, now
	if old, ok := m.profiles[p.PatientID]; ok {
		saved.CreatedAt = old.CreatedAt
		saved.UpdatedAt = old.UpdatedAt.Add(time.Minute)
	}
	m.profiles[p.PatientID] = &saved
	out := saved
	return &out, nil
}

func (m *mockRepo) Get(_ context.Context, patientID int64) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.profiles[patientID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

func newServer(repo Repository, roles []string, patientID int64) *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	e.HTTPErrorHandler = middleware.ErrorHandler(zerolog.Nop(), ClassifyError)
	api := e.Group("", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), "user-1", roles, patientID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(NewService(repo, zerolog.Nop())).RegisterRoutes(api)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("response is not a JSON object: %q", rec.Body.String())
		}
	}
	return rec, out
}

const profileBody = `{"patient_id":5,"patient_name":" Ana ","delivery_date":"2025-10-30","delivery_type":"Cesarean",
	"infant_name":"Lia","infant_birth_weight":3.4,"infant_birth_date":"2025-10-30"}`

func TestSaveProfile_CreatesAndReplaces(t *testing.T) {
	repo := newMockRepo()
	e := newServer(repo, []string{auth.RoleNurse}, 0)

	rec, body := do(t, e, http.MethodPost, "/api/postnatal/profile", profileBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", rec.Code, body)
	}
	if body["patient_name"] != "Ana" || body["delivery_type"] != "cesarean" || body["delivery_date"] != "2025-10-30" {
		t.Errorf("unexpected profile %v", body)
	}
	if body["infant_birth_weight"] != 3.4 || body["infant_birth_date"] != "2025-10-30" {
		t.Errorf("unexpected infant details %v", body)
	}

	rec, body = do(t, e, http.MethodPost, "/api/postnatal/profile",
		`{"patient_id":5,"patient_name":"Ana","delivery_date":"2025-10-30","delivery_type":"vaginal"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["delivery_type"] != "vaginal" {
		t.Errorf("expected replacement, got %v", body["delivery_type"])
	}
	if _, ok := body["infant_birth_weight"]; ok {
		t.Error("replacement must not keep omitted fields")
	}
	if len(repo.profiles) != 1 {
		t.Errorf("expected one profile per patient, got %d", len(repo.profiles))
	}
}

func TestSaveProfile_Validation(t *testing.T) {
	e := newServer(newMockRepo(), []string{auth.RoleNurse}, 0)

	rec, body := do(t, e, http.MethodPost, "/api/postnatal/profile",
		`{"patient_id":0,"delivery_date":"30/10/2025","delivery_type":"forceps","infant_birth_weight":-1}`)
	if rec.Code != http.StatusBadRequest || body["error"] != "invalid payload" {
		t.Fatalf("expected 400 invalid payload, got %d %v", rec.Code, body)
	}
	paths := map[string]bool{}
	for _, raw := range body["fields"].([]interface{}) {
		paths[raw.(map[string]interface{})["path"].(string)] = true
	}
	for _, p := range []string{"patient_id", "patient_name", "delivery_date", "delivery_type", "infant_birth_weight"} {
		if !paths[p] {
			t.Errorf("expected a field error for %s, got %v", p, paths)
		}
	}

	rec, _ = do(t, e, http.MethodPost, "/api/postnatal/profile", `[`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestGetProfile(t *testing.T) {
	repo := newMockRepo()
	staff := newServer(repo, []string{auth.RolePhysician}, 0)
	do(t, staff, http.MethodPost, "/api/postnatal/profile", profileBody)

	rec, body := do(t, staff, http.MethodGet, "/api/postnatal/profile/5", "")
	if rec.Code != http.StatusOK || body["patient_id"] != float64(5) {
		t.Fatalf("expected profile 5, got %d %v", rec.Code, body)
	}
	rec, body = do(t, staff, http.MethodGet, "/api/postnatal/profile/6", "")
	if rec.Code != http.StatusNotFound || body["error"] != ErrNotFound.Error() {
		t.Errorf("expected 404, got %d %v", rec.Code, body)
	}
	rec, _ = do(t, staff, http.MethodGet, "/api/postnatal/profile/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	patient := newServer(repo, []string{auth.RolePatient}, 5)
	rec, _ = do(t, patient, http.MethodGet, "/api/postnatal/profile", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected own profile, got %d", rec.Code)
	}
	rec, _ = do(t, patient, http.MethodGet, "/api/postnatal/profile/6", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another patient, got %d", rec.Code)
	}
	rec, _ = do(t, patient, http.MethodPost, "/api/postnatal/profile",
		`{"patient_id":6,"patient_name":"B","delivery_date":"2025-10-30","delivery_type":"vaginal"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another patient's profile, got %d", rec.Code)
	}
}

func TestProfile_StorageFault(t *testing.T) {
	repo := newMockRepo()
	repo.err = ErrStorageFault
	e := newServer(repo, []string{auth.RoleAdmin}, 0)

	rec, body := do(t, e, http.MethodPost, "/api/postnatal/profile", profileBody)
	if rec.Code != http.StatusInternalServerError || body["error"] != "storage failure" {
		t.Errorf("expected 500 storage failure, got %d %v", rec.Code, body)
	}
}

func TestProfileRequest_Profile(t *testing.T) {
	born := "2025-10-29"
	r := &ProfileRequest{PatientID: 1, PatientName: "A", DeliveryDate: "2025-10-30", DeliveryType: "assisted", InfantBirthDate: &born}
	p, err := r.Profile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DeliveryDate.String() != "2025-10-30" || p.InfantBirthDate == nil || p.InfantBirthDate.String() != "2025-10-29" {
		t.Errorf("unexpected profile %+v", p)
	}

	blank := "  "
	r = &ProfileRequest{DeliveryType: " VAGINAL ", InfantBirthDate: &blank}
	r.Clean()
	if r.DeliveryType != "vaginal" || r.InfantBirthDate != nil {
		t.Errorf("unexpected cleaned request %+v", r)
	}
}
