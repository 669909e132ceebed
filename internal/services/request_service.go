// Package services – RequestService
//
// This file implements RequestService, the application-level component that
// owns the service request lifecycle. It validates status transitions
// against the per-role tables, enforces ownership/assignment permissions,
// persists guarded status writes, records status history, triggers lazy
// payment creation on entry into pending_payment, and hands completed
// transitions to the notification dispatcher.
//
// Two update paths exist, mirroring the two public endpoints:
//
//   - UpdateStatus: the dedicated status-update operation. Transition
//     validation runs in mutual mode (both directions of the table must
//     agree).
//   - UpdateFields: the generic partial update. The submitted body is first
//     filtered to the per-(role,status) field projection; a status change,
//     when present, is validated in single-direction mode.
//
// History inserts are deliberately fire-and-forget: a failed history write
// is logged and never fails the user-visible operation.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mechanicondemand/go-backend/internal/domain"
	"github.com/mechanicondemand/go-backend/internal/repo"
)

// RequestService coordinates service request reads and guarded writes.
type RequestService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Notifier fans out stakeholder notifications after a transition.
	// May be nil in tests that do not care about side effects.
	Notifier *NotifyService
}

// NewRequestService constructs a RequestService.
func NewRequestService(db *gorm.DB, notifier *NotifyService) *RequestService {
	return &RequestService{DB: db, Notifier: notifier}
}

// hasPermission reports whether user may act on sr: admins always, customers
// on their own requests, mechanics on requests assigned to their shop
// (secondary shop-ownership lookup), drivers when assigned for pickup or
// return. Unknown roles are denied. Read-only.
func (s *RequestService) hasPermission(ctx context.Context, user *domain.User, sr *domain.ServiceRequest) bool {
	switch user.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleCustomer:
		return user.ID == sr.CustomerID
	case domain.RoleMechanic:
		if sr.ShopID == nil {
			return false
		}
		shop, err := repo.GetShopByOwner(ctx, s.DB, user.ID)
		if err != nil {
			return false
		}
		return shop.ID == *sr.ShopID
	case domain.RoleDriver:
		if sr.PickupDriverID != nil && *sr.PickupDriverID == user.ID {
			return true
		}
		return sr.ReturnDriverID != nil && *sr.ReturnDriverID == user.ID
	}
	return false
}

// Get returns the service request joined with vehicle, shop, and payment,
// after checking the actor's permission on it.
func (s *RequestService) Get(ctx context.Context, actor *domain.User, id string) (*domain.ServiceRequest, error) {
	sr, err := repo.GetServiceRequest(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if !s.hasPermission(ctx, actor, sr) {
		return nil, ErrForbidden
	}
	return sr, nil
}

// UpdateStatus applies a validated, permitted status change on behalf of
// actor, optionally appending a note. Validation runs in mutual mode.
//
// Effects, in order: guarded status+notes write (conflict when a concurrent
// writer won), history insert (fire-and-forget), notification fan-out with
// the pre-update snapshot. Returns the refreshed record.
func (s *RequestService) UpdateStatus(ctx context.Context, actor *domain.User, id string, next domain.Status, noteText string) (*domain.ServiceRequest, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "UpdateStatus",
		trace.WithAttributes(
			attribute.String("request.id", id),
			attribute.String("request.next_status", string(next)),
			attribute.String("user.role", string(actor.Role)),
		),
	)
	defer span.End()

	if !domain.ValidStatus(next) {
		return nil, ErrInvalidStatus
	}

	sr, err := repo.GetServiceRequest(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	if !domain.TransitionAllowedMutual(actor.Role, sr.Status, next) {
		return nil, ErrInvalidTransition
	}
	if !s.hasPermission(ctx, actor, sr) {
		return nil, ErrForbidden
	}

	notes := sr.Notes
	if noteText != "" {
		notes = append(notes, domain.Note{
			Text:        noteText,
			AddedBy:     actor.ID,
			AddedByRole: actor.Role,
			AddedAt:     time.Now().UTC(),
		})
	}

	ok, err := repo.UpdateRequestStatus(ctx, s.DB, sr.ID, sr.Status, next, notes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	s.recordHistory(ctx, sr, next, actor, noteText)

	if s.Notifier != nil {
		// The dispatcher works off the pre-update snapshot.
		s.Notifier.DispatchStatusChange(ctx, sr, sr.Status, next, actor)
	}

	return repo.GetServiceRequest(ctx, s.DB, sr.ID)
}

// UpdateFields applies a partial update submitted through the generic PUT
// endpoint. The body is filtered to the actor's field projection for the
// request's current status; a status change, when present, is validated in
// single-direction mode. On a transition into pending_payment a Payment row
// is created when the request has a price and none exists yet.
func (s *RequestService) UpdateFields(ctx context.Context, actor *domain.User, id string, body map[string]any) (*domain.ServiceRequest, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "UpdateFields",
		trace.WithAttributes(
			attribute.String("request.id", id),
			attribute.String("user.role", string(actor.Role)),
		),
	)
	defer span.End()

	sr, err := repo.GetServiceRequest(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if !s.hasPermission(ctx, actor, sr) {
		return nil, ErrForbidden
	}

	allowed := domain.AllowedUpdateFields(actor.Role, sr.Status)
	updates := map[string]any{}
	var (
		nextStatus *domain.Status
		newPrice   *float64
		noteText   string
	)

	for field, raw := range body {
		if _, ok := allowed[field]; !ok {
			continue
		}
		switch field {
		case domain.FieldStatus:
			v, ok := raw.(string)
			if !ok {
				return nil, ErrInvalidStatus
			}
			st := domain.Status(v)
			if !domain.ValidStatus(st) {
				return nil, ErrInvalidStatus
			}
			nextStatus = &st
		case domain.FieldPrice:
			v, ok := raw.(float64)
			if !ok {
				continue
			}
			newPrice = &v
			updates["price"] = v
		case domain.FieldNotes:
			if v, ok := raw.(string); ok && v != "" {
				noteText = v
			}
		case domain.FieldShopID, domain.FieldPickupDriverID, domain.FieldReturnDriverID:
			if v, ok := raw.(string); ok && v != "" {
				updates[field] = v
			}
		}
	}

	if nextStatus == nil && len(updates) == 0 && noteText == "" {
		return nil, ErrNoUpdatableFields
	}

	var expected *domain.Status
	if nextStatus != nil {
		if !domain.TransitionAllowed(actor.Role, sr.Status, *nextStatus) {
			return nil, ErrInvalidTransition
		}
		updates["status"] = *nextStatus
		cur := sr.Status
		expected = &cur
	}
	if noteText != "" {
		updates["notes"] = append(sr.Notes, domain.Note{
			Text:        noteText,
			AddedBy:     actor.ID,
			AddedByRole: actor.Role,
			AddedAt:     time.Now().UTC(),
		})
	}

	wrote, err := repo.UpdateRequestFields(ctx, s.DB, sr.ID, expected, updates)
	if err != nil {
		return nil, err
	}
	if !wrote {
		if expected != nil {
			return nil, ErrConflict
		}
		return nil, ErrRequestNotFound
	}

	if nextStatus != nil {
		s.recordHistory(ctx, sr, *nextStatus, actor, noteText)
		if *nextStatus == domain.StatusPendingPayment {
			s.ensurePayment(ctx, sr, newPrice)
		}
		if s.Notifier != nil {
			s.Notifier.DispatchStatusChange(ctx, sr, sr.Status, *nextStatus, actor)
		}
	}

	return repo.GetServiceRequest(ctx, s.DB, sr.ID)
}

// ListHistory returns a page of the request's status history, newest first,
// after checking the actor's permission.
func (s *RequestService) ListHistory(ctx context.Context, actor *domain.User, id string, page, pageSize int) ([]domain.StatusHistory, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, 0, err
	}

	total, err := repo.CountStatusHistory(ctx, s.DB, id)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.StatusHistory{}, 0, nil
	}
	items, err := repo.ListStatusHistoryPage(ctx, s.DB, id, (page-1)*pageSize, pageSize)
	return items, total, err
}

// recordHistory appends a status history row. Failures are logged and
// swallowed: history must never fail the transition that produced it.
func (s *RequestService) recordHistory(ctx context.Context, sr *domain.ServiceRequest, next domain.Status, actor *domain.User, noteText string) {
	err := repo.AppendStatusHistory(ctx, s.DB, &domain.StatusHistory{
		ServiceRequestID: sr.ID,
		PreviousStatus:   sr.Status,
		NewStatus:        next,
		ChangedBy:        actor.ID,
		ChangedByRole:    actor.Role,
		Notes:            noteText,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("service_request_id", sr.ID).
			Str("new_status", string(next)).
			Msg("status history insert failed")
	}
}

// ensurePayment lazily creates the pending payment on entry into
// pending_payment. The amount is the price submitted in the same update when
// present, otherwise the price already on the request; without any price no
// payment is created. A concurrent duplicate create collapses into the
// unique index and is ignored.
func (s *RequestService) ensurePayment(ctx context.Context, sr *domain.ServiceRequest, newPrice *float64) {
	price := sr.Price
	if newPrice != nil {
		price = newPrice
	}
	if price == nil {
		return
	}
	if _, err := repo.GetPaymentByRequest(ctx, s.DB, sr.ID); err == nil {
		return
	}
	if _, err := repo.CreatePayment(ctx, s.DB, sr.ID, *price); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		log.Warn().Err(err).
			Str("service_request_id", sr.ID).
			Msg("payment create failed")
	}
}
