package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendStatusEmail_NoEndpointIsNoop(t *testing.T) {
	c := NewEmailClient("")
	err := c.SendStatusEmail(context.Background(), StatusEmail{ServiceRequestID: "sr1"})
	if err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestSendStatusEmail_PostsJSON(t *testing.T) {
	var got StatusEmail
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s; want POST", r.Method)
		}
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewEmailClient(srv.URL)
	err := c.SendStatusEmail(context.Background(), StatusEmail{
		ServiceRequestID: "sr1",
		PreviousStatus:   "pending",
		NewStatus:        "accepted",
		RecipientEmail:   "a@example.com",
		RecipientName:    "Alex",
	})
	if err != nil {
		t.Fatalf("SendStatusEmail: %v", err)
	}
	if contentType != "application/json" {
		t.Fatalf("content type: %q", contentType)
	}
	if got.ServiceRequestID != "sr1" || got.NewStatus != "accepted" || got.RecipientEmail != "a@example.com" {
		t.Fatalf("payload: %+v", got)
	}
}

func TestSendStatusEmail_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewEmailClient(srv.URL)
	if err := c.SendStatusEmail(context.Background(), StatusEmail{}); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestSendStatusEmail_UnreachableEndpoint(t *testing.T) {
	c := NewEmailClient("http://127.0.0.1:1") // nothing listens here
	if err := c.SendStatusEmail(context.Background(), StatusEmail{}); err == nil {
		t.Fatal("expected transport error")
	}
}
