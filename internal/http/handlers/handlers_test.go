package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mechanicondemand/go-backend/internal/domain"
	"github.com/mechanicondemand/go-backend/internal/services"
)

// stubRequestService implements RequestService with canned results.
type stubRequestService struct {
	getSR     *domain.ServiceRequest
	getErr    error
	updSR     *domain.ServiceRequest
	updErr    error
	history   []domain.StatusHistory
	histTotal int64
	histErr   error

	lastStatus domain.Status
	lastNote   string
	lastBody   map[string]any
}

func (s *stubRequestService) Get(_ context.Context, _ *domain.User, _ string) (*domain.ServiceRequest, error) {
	return s.getSR, s.getErr
}

func (s *stubRequestService) UpdateStatus(_ context.Context, _ *domain.User, _ string, next domain.Status, note string) (*domain.ServiceRequest, error) {
	s.lastStatus = next
	s.lastNote = note
	return s.updSR, s.updErr
}

func (s *stubRequestService) UpdateFields(_ context.Context, _ *domain.User, _ string, body map[string]any) (*domain.ServiceRequest, error) {
	s.lastBody = body
	return s.updSR, s.updErr
}

func (s *stubRequestService) ListHistory(_ context.Context, _ *domain.User, _ string, _, _ int) ([]domain.StatusHistory, int64, error) {
	return s.history, s.histTotal, s.histErr
}

// stubNotificationService implements NotificationService.
type stubNotificationService struct {
	items   []domain.Notification
	total   int64
	listErr error
	markErr error
}

func (s *stubNotificationService) ListPage(_ context.Context, _ string, _, _ int) ([]domain.Notification, int64, error) {
	return s.items, s.total, s.listErr
}

func (s *stubNotificationService) MarkRead(_ context.Context, _, _ string) error {
	return s.markErr
}

// testEngine mounts the handlers behind a fake auth layer that injects user.
func testEngine(h *Handlers, user *domain.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := func(c *gin.Context) {
		if user != nil {
			c.Set("authUser", user)
		}
		c.Next()
	}
	r.GET("/service-request/:id", auth, h.GetServiceRequest)
	r.PUT("/service-request/:id", auth, h.UpdateServiceRequest)
	r.GET("/service-request/:id/history", auth, h.ListServiceRequestHistory)
	r.POST("/status-update", auth, h.StatusUpdate)
	r.GET("/notifications", auth, h.ListNotifications)
	r.PUT("/notifications/:id/read", auth, h.MarkNotificationRead)
	return r
}

func testUser(role domain.Role) *domain.User {
	return &domain.User{ID: uuid.NewString(), Name: "t", Email: "t@x", Role: role}
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return e
}

func TestGetServiceRequestHandler(t *testing.T) {
	id := uuid.NewString()

	t.Run("ok", func(t *testing.T) {
		svc := &stubRequestService{getSR: &domain.ServiceRequest{ID: id, Status: domain.StatusPending}}
		r := testEngine(New(svc, &stubNotificationService{}), testUser(domain.RoleCustomer))

		w := do(r, http.MethodGet, "/service-request/"+id, "")
		if w.Code != http.StatusOK {
			t.Fatalf("code = %d body = %s", w.Code, w.Body.String())
		}
		var sr domain.ServiceRequest
		if err := json.Unmarshal(w.Body.Bytes(), &sr); err != nil || sr.ID != id {
			t.Fatalf("body: %s (err %v)", w.Body.String(), err)
		}
	})

	t.Run("non uuid id", func(t *testing.T) {
		svc := &stubRequestService{}
		r := testEngine(New(svc, &stubNotificationService{}), testUser(domain.RoleCustomer))
		w := do(r, http.MethodGet, "/service-request/abc", "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("code = %d; want 400", w.Code)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		svc := &stubRequestService{}
		r := testEngine(New(svc, &stubNotificationService{}), nil)
		w := do(r, http.MethodGet, "/service-request/"+id, "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("code = %d; want 401", w.Code)
		}
	})

	t.Run("error mapping", func(t *testing.T) {
		cases := []struct {
			err      error
			wantCode int
			wantBody string
		}{
			{services.ErrRequestNotFound, http.StatusNotFound, ErrCodeNotFound},
			{services.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
			{services.ErrConflict, http.StatusConflict, ErrCodeConflict},
			{context.DeadlineExceeded, http.StatusInternalServerError, ErrCodeInternal},
		}
		for _, tc := range cases {
			svc := &stubRequestService{getErr: tc.err}
			r := testEngine(New(svc, &stubNotificationService{}), testUser(domain.RoleAdmin))
			w := do(r, http.MethodGet, "/service-request/"+id, "")
			if w.Code != tc.wantCode {
				t.Fatalf("%v: code = %d; want %d", tc.err, w.Code, tc.wantCode)
			}
			if e := decodeError(t, w); e.Code != tc.wantBody {
				t.Fatalf("%v: error code = %q; want %q", tc.err, e.Code, tc.wantBody)
			}
		}
	})
}

func TestUpdateServiceRequestHandler(t *testing.T) {
	id := uuid.NewString()

	t.Run("ok passes body through", func(t *testing.T) {
		svc := &stubRequestService{updSR: &domain.ServiceRequest{ID: id, Status: domain.StatusAccepted}}
		r := testEngine(New(svc, &stubNotificationService{}), testUser(domain.RoleMechanic))

		w := do(r, http.MethodPut, "/service-request/"+id, `{"status":"accepted","price":120.5}`)
		if w.Code != http.StatusOK {
			t.Fatalf("code = %d body = %s", w.Code, w.Body.String())
		}
		if svc.lastBody["status"] != "accepted" || svc.lastBody["price"] != 120.5 {
			t.Fatalf("body not forwarded: %v", svc.lastBody)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		svc := &stubRequestService{}
		r := testEngine(New(svc, &stubNotificationService{}), testUser(domain.RoleMechanic))
		w := do(r, http.MethodPut, "/service-request/"+id, `{}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("code = %d; want 400", w.Code)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		svc := &stubRequestService{}
		r := testEngine(New(svc, &stubNotificationService{}), testUser(domain.RoleMechanic))
		w := do(r, http.MethodPut, "/service-request/"+id, `{"status":`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("code = %d; want 400", w.Code)
		}
	})

	t.Run("invalid transition maps to 400", func(t *testing.T) {
		svc := &stubRequestService{updErr: services.ErrInvalidTransition}
		r := testEngine(New(svc, &stubNotificationService{}), testUser(domain.RoleDriver))
		w := do(r, http.MethodPut, "/service-request/"+id, `{"status":"delivered"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("code = %d; want 400", w.Code)
		}
		if e := decodeError(t, w); e.Code != ErrCodeInvalidTransition {
			t.Fatalf("error code = %q", e.Code)
		}
	})

	t.Run("no updatable fields maps to 400", func(t *testing.T) {
		svc := &stubRequestService{updErr: services.ErrNoUpdatableFields}
		r := testEngine(New(svc, &stubNotificationService{}), testUser(domain.RoleDriver))
		w := do(r, http.MethodPut, "/service-request/"+id, `{"price":5}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("code = %d; want 400", w.Code)
		}
	})
}

func TestStatusUpdateHandler(t *testing.T) {
	id := uuid.NewString()

	t.Run("ok", func(t *testing.T) {
		svc := &stubRequestService{updSR: &domain.ServiceRequest{ID: id, Status: domain.StatusCancelled}}
		r := testEngine(New(svc, &stubNotificationService{}), testUser(domain.RoleCustomer))

		w := do(r, http.MethodPost, "/status-update",
			`{"serviceRequestId":"`+id+`","status":" cancelled ","notes":"  done "}`)
		if w.Code != http.StatusOK {
			t.Fatalf("code = %d body = %s", w.Code, w.Body.String())
		}
		var resp StatusUpdateResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !resp.Success || resp.ServiceRequest == nil || resp.ServiceRequest.ID != id {
			t.Fatalf("response: %+v", resp)
		}
		// Whitespace trimmed before reaching the service.
		if svc.lastStatus != domain.StatusCancelled || svc.lastNote != "done" {
			t.Fatalf("forwarded: status=%q note=%q", svc.lastStatus, svc.lastNote)
		}
	})

	t.Run("missing required fields", func(t *testing.T) {
		svc := &stubRequestService{}
		r := testEngine(New(svc, &stubNotificationService{}), testUser(domain.RoleCustomer))
		w := do(r, http.MethodPost, "/status-update", `{"status":"accepted"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("code = %d; want 400", w.Code)
		}
	})

	t.Run("invalid status maps to 400", func(t *testing.T) {
		svc := &stubRequestService{updErr: services.ErrInvalidStatus}
		r := testEngine(New(svc, &stubNotificationService{}), testUser(domain.RoleCustomer))
		w := do(r, http.MethodPost, "/status-update",
			`{"serviceRequestId":"`+id+`","status":"warp"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("code = %d; want 400", w.Code)
		}
	})

	t.Run("conflict maps to 409", func(t *testing.T) {
		svc := &stubRequestService{updErr: services.ErrConflict}
		r := testEngine(New(svc, &stubNotificationService{}), testUser(domain.RoleCustomer))
		w := do(r, http.MethodPost, "/status-update",
			`{"serviceRequestId":"`+id+`","status":"cancelled"}`)
		if w.Code != http.StatusConflict {
			t.Fatalf("code = %d; want 409", w.Code)
		}
	})
}

func TestListHistoryHandler(t *testing.T) {
	id := uuid.NewString()
	svc := &stubRequestService{
		history: []domain.StatusHistory{
			{ServiceRequestID: id, PreviousStatus: domain.StatusPending, NewStatus: domain.StatusAccepted},
		},
		histTotal: 45,
	}
	r := testEngine(New(svc, &stubNotificationService{}), testUser(domain.RoleCustomer))

	w := do(r, http.MethodGet, "/service-request/"+id+"/history?page=2&page_size=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d body = %s", w.Code, w.Body.String())
	}
	var resp ListHistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.History) != 1 {
		t.Fatalf("history len = %d", len(resp.History))
	}
	p := resp.Pagination
	if p.Page != 2 || p.PageSize != 10 || p.Total != 45 || p.TotalPages != 5 || !p.HasNext {
		t.Fatalf("pagination: %+v", p)
	}
}

func TestListNotificationsHandler(t *testing.T) {
	u := testUser(domain.RoleCustomer)
	svc := &stubNotificationService{
		items: []domain.Notification{{ID: uuid.NewString(), UserID: u.ID, Title: "t"}},
		total: 1,
	}
	r := testEngine(New(&stubRequestService{}, svc), u)

	w := do(r, http.MethodGet, "/notifications", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d body = %s", w.Code, w.Body.String())
	}
	var resp ListNotificationsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Notifications) != 1 || resp.Pagination.Total != 1 {
		t.Fatalf("response: %+v", resp)
	}

	t.Run("page size clamped to 100", func(t *testing.T) {
		w := do(r, http.MethodGet, "/notifications?page_size=5000", "")
		if w.Code != http.StatusOK {
			t.Fatalf("code = %d", w.Code)
		}
		var resp ListNotificationsResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Pagination.PageSize != 100 {
			t.Fatalf("page size = %d; want 100", resp.Pagination.PageSize)
		}
	})
}

func TestMarkNotificationReadHandler(t *testing.T) {
	id := uuid.NewString()

	t.Run("ok", func(t *testing.T) {
		r := testEngine(New(&stubRequestService{}, &stubNotificationService{}), testUser(domain.RoleCustomer))
		w := do(r, http.MethodPut, "/notifications/"+id+"/read", "")
		if w.Code != http.StatusNoContent {
			t.Fatalf("code = %d; want 204", w.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		svc := &stubNotificationService{markErr: services.ErrNotificationNotFound}
		r := testEngine(New(&stubRequestService{}, svc), testUser(domain.RoleCustomer))
		w := do(r, http.MethodPut, "/notifications/"+id+"/read", "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("code = %d; want 404", w.Code)
		}
	})

	t.Run("non uuid id", func(t *testing.T) {
		r := testEngine(New(&stubRequestService{}, &stubNotificationService{}), testUser(domain.RoleCustomer))
		w := do(r, http.MethodPut, "/notifications/abc/read", "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("code = %d; want 400", w.Code)
		}
	})
}
