package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mechanicondemand/go-backend/internal/domain"
	"github.com/mechanicondemand/go-backend/internal/repo"
)

func TestNotificationListPage(t *testing.T) {
	db := newTestDB(t)
	svc := &NotificationService{DB: db}

	for i := 0; i < 5; i++ {
		err := repo.CreateNotification(context.Background(), db, &domain.Notification{
			UserID:    "u1",
			Type:      "status_change",
			Title:     fmt.Sprintf("n%d", i),
			Message:   "m",
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	items, total, err := svc.ListPage(context.Background(), "u1", 1, 3)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 5 || len(items) != 3 {
		t.Fatalf("total=%d len=%d; want 5/3", total, len(items))
	}
	if items[0].Title != "n4" {
		t.Fatalf("newest first expected, got %q", items[0].Title)
	}

	items, _, err = svc.ListPage(context.Background(), "u1", 2, 3)
	if err != nil || len(items) != 2 {
		t.Fatalf("page 2: len=%d err=%v", len(items), err)
	}

	t.Run("defaults for bad paging input", func(t *testing.T) {
		items, total, err := svc.ListPage(context.Background(), "u1", 0, -1)
		if err != nil || total != 5 || len(items) != 5 {
			t.Fatalf("total=%d len=%d err=%v", total, len(items), err)
		}
	})

	t.Run("other users see nothing", func(t *testing.T) {
		items, total, err := svc.ListPage(context.Background(), "u2", 1, 10)
		if err != nil || total != 0 || len(items) != 0 {
			t.Fatalf("total=%d len=%d err=%v", total, len(items), err)
		}
	})
}

func TestNotificationMarkRead(t *testing.T) {
	db := newTestDB(t)
	svc := &NotificationService{DB: db}

	n := &domain.Notification{UserID: "u1", Type: "status_change", Title: "t", Message: "m"}
	if err := repo.CreateNotification(context.Background(), db, n); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := svc.MarkRead(context.Background(), "u1", n.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	t.Run("foreign notification", func(t *testing.T) {
		err := svc.MarkRead(context.Background(), "u2", n.ID)
		if !errors.Is(err, ErrNotificationNotFound) {
			t.Fatalf("expected ErrNotificationNotFound, got %v", err)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		err := svc.MarkRead(context.Background(), "u1", "nope")
		if !errors.Is(err, ErrNotificationNotFound) {
			t.Fatalf("expected ErrNotificationNotFound, got %v", err)
		}
	})
}
