package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mechanicondemand/go-backend/internal/config"
	"github.com/mechanicondemand/go-backend/internal/domain"
	"github.com/mechanicondemand/go-backend/internal/events"
	"github.com/mechanicondemand/go-backend/internal/repo"
)

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api",
		RateRPS:     1000,
		RateBurst:   1000,
		Security: config.SecurityConfig{
			EnableHSTS: false,
			HSTSMaxAge: 180 * 24 * time.Hour,
		},
		OTEL: config.OTELConfig{ServiceName: "test"},
	}
}

func newRouterTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newRouterTestDB(t)
	RegisterRoutes(r, db, events.NewProducer(nil, ""), testConfig())
	return r, db
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Fatalf("body: %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestNoRouteAndNoMethod(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("code = %d; want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not_found") {
		t.Fatalf("body: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("code = %d; want 405", w.Code)
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/service-request/" + uuid.NewString()},
		{http.MethodPut, "/api/service-request/" + uuid.NewString()},
		{http.MethodGet, "/api/service-request/" + uuid.NewString() + "/history"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodPut, "/api/notifications/" + uuid.NewString() + "/read"},
		{http.MethodPost, "/api/status-update"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: code = %d; want 401", tc.method, tc.path, w.Code)
		}
	}
}

// Full path through router, auth, service, and repo layers.
func TestEndToEnd_StatusUpdate(t *testing.T) {
	r, db := newTestRouter(t)

	customer := &domain.User{ID: uuid.NewString(), Name: "C", Email: "c@x", Role: domain.RoleCustomer, APIToken: "cust-token"}
	if err := db.Create(customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	mech := &domain.User{ID: uuid.NewString(), Name: "M", Email: "m@x", Role: domain.RoleMechanic, APIToken: "mech-token"}
	if err := db.Create(mech).Error; err != nil {
		t.Fatalf("seed mechanic: %v", err)
	}
	shop := &domain.Shop{ID: uuid.NewString(), OwnerUserID: mech.ID, Name: "S", Email: "s@x"}
	if err := db.Create(shop).Error; err != nil {
		t.Fatalf("seed shop: %v", err)
	}
	veh := &domain.Vehicle{ID: uuid.NewString(), OwnerUserID: customer.ID}
	if err := db.Create(veh).Error; err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
	sr := &domain.ServiceRequest{
		ID:         uuid.NewString(),
		CustomerID: customer.ID,
		VehicleID:  veh.ID,
		ShopID:     &shop.ID,
		Status:     domain.StatusPending,
	}
	if err := db.Create(sr).Error; err != nil {
		t.Fatalf("seed request: %v", err)
	}

	// Customer cancels via the session-cookie endpoint.
	body := fmt.Sprintf(`{"serviceRequestId":%q,"status":"cancelled","notes":"sold the car"}`, sr.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/status-update", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "mod_session", Value: "cust-token"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status update: code = %d body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success        bool                   `json:"success"`
		ServiceRequest *domain.ServiceRequest `json:"serviceRequest"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.ServiceRequest.Status != domain.StatusCancelled {
		t.Fatalf("response: %+v", resp)
	}

	// The shop owner got an in-app notification and can read it back.
	req = httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("Authorization", "Bearer mech-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list notifications: code = %d body = %s", w.Code, w.Body.String())
	}
	var list struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Notifications) != 1 || list.Notifications[0].RelatedID != sr.ID {
		t.Fatalf("notifications: %+v", list.Notifications)
	}

	// History is visible to the customer over the bearer endpoint.
	req = httptest.NewRequest(http.MethodGet, "/api/service-request/"+sr.ID+"/history", nil)
	req.Header.Set("Authorization", "Bearer cust-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("history: code = %d body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), string(domain.StatusCancelled)) {
		t.Fatalf("history body: %s", w.Body.String())
	}
}

func TestEndToEnd_GetServiceRequest_Forbidden(t *testing.T) {
	r, db := newTestRouter(t)

	owner := &domain.User{ID: uuid.NewString(), Name: "O", Email: "o@x", Role: domain.RoleCustomer, APIToken: "owner-token"}
	stranger := &domain.User{ID: uuid.NewString(), Name: "S", Email: "s@x", Role: domain.RoleCustomer, APIToken: "stranger-token"}
	for _, u := range []*domain.User{owner, stranger} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	sr := &domain.ServiceRequest{
		ID:         uuid.NewString(),
		CustomerID: owner.ID,
		VehicleID:  uuid.NewString(),
		Status:     domain.StatusPending,
	}
	if err := db.Create(sr).Error; err != nil {
		t.Fatalf("seed request: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/service-request/"+sr.ID, nil)
	req.Header.Set("Authorization", "Bearer stranger-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("code = %d; want 403", w.Code)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q", got)
	}
}

func TestGroupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if g := groupWithPrefix(r, ""); g.BasePath() != "/" {
		t.Fatalf("empty prefix base = %q", g.BasePath())
	}
	if g := groupWithPrefix(r, "/"); g.BasePath() != "/" {
		t.Fatalf("root prefix base = %q", g.BasePath())
	}
	if g := groupWithPrefix(r, "/api/v1"); g.BasePath() != "/api/v1" {
		t.Fatalf("prefix base = %q", g.BasePath())
	}
}
