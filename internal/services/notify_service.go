// Package services – NotifyService
//
// This file implements the notification dispatcher. Given the pre-update
// snapshot of a service request, it notifies every other stakeholder of a
// status change: the customer, the assigned shop's owner, and any assigned
// drivers, always skipping the actor who made the change.
//
// Dispatch is a best-effort fan-out, not a transaction. Per recipient it
// inserts one in-app notification row and then calls the external
// status-email endpoint; every failure is logged with the recipient and the
// loop continues. One more best-effort side channel publishes a single
// status_changed event to Kafka per transition.
package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mechanicondemand/go-backend/internal/domain"
	"github.com/mechanicondemand/go-backend/internal/events"
	"github.com/mechanicondemand/go-backend/internal/notify"
	"github.com/mechanicondemand/go-backend/internal/repo"
)

// NotifyService fans out status change notifications to stakeholders.
type NotifyService struct {
	// DB is the GORM handle used for notification rows and recipient lookups.
	DB *gorm.DB
	// Email delivers status emails; nil disables email sends.
	Email notify.EmailSender
	// Events publishes status events to Kafka; nil disables publishing.
	Events events.StatusEventProducer
}

// NewNotifyService constructs a NotifyService.
func NewNotifyService(db *gorm.DB, email notify.EmailSender, producer events.StatusEventProducer) *NotifyService {
	return &NotifyService{DB: db, Email: email, Events: producer}
}

var statusTitler = cases.Title(language.English)

// humanizeStatus renders a status value for notification titles, e.g.
// "in_transit_to_shop" -> "In Transit To Shop".
func humanizeStatus(s domain.Status) string {
	return statusTitler.String(strings.ReplaceAll(string(s), "_", " "))
}

// DispatchStatusChange notifies every stakeholder other than actor that sr
// moved from prev to next. sr is the stale pre-update snapshot; recipient
// resolution reads current user and shop rows. All failures are logged and
// swallowed; the method never returns an error by design of the endpoint
// contract (the user-visible operation already succeeded).
func (n *NotifyService) DispatchStatusChange(ctx context.Context, sr *domain.ServiceRequest, prev, next domain.Status, actor *domain.User) {
	// Customer.
	if sr.CustomerID != actor.ID {
		n.notifyUserID(ctx, sr, prev, next, sr.CustomerID)
	}

	// Shop owner.
	if sr.ShopID != nil {
		shop, err := repo.GetShopByID(ctx, n.DB, *sr.ShopID)
		if err != nil {
			log.Warn().Err(err).Str("shop_id", *sr.ShopID).Msg("notify: shop lookup failed")
		} else if shop.OwnerUserID != actor.ID {
			n.notifyUserID(ctx, sr, prev, next, shop.OwnerUserID)
		}
	}

	// Drivers; distinct ids, batch lookup.
	driverIDs := make([]string, 0, 2)
	seen := map[string]struct{}{}
	for _, d := range []*string{sr.PickupDriverID, sr.ReturnDriverID} {
		if d == nil || *d == actor.ID {
			continue
		}
		if _, dup := seen[*d]; dup {
			continue
		}
		seen[*d] = struct{}{}
		driverIDs = append(driverIDs, *d)
	}
	if len(driverIDs) > 0 {
		drivers, err := repo.GetUsersByIDs(ctx, n.DB, driverIDs)
		if err != nil {
			log.Warn().Err(err).Strs("driver_ids", driverIDs).Msg("notify: driver lookup failed")
		} else {
			for i := range drivers {
				n.notifyUser(ctx, sr, prev, next, &drivers[i])
			}
		}
	}

	if n.Events != nil {
		n.Events.PublishStatusChanged(ctx, map[string]any{
			"service_request_id": sr.ID,
			"previous_status":    string(prev),
			"new_status":         string(next),
			"changed_by":         actor.ID,
			"changed_by_role":    string(actor.Role),
		})
	}
}

// notifyUserID resolves a single recipient by id and notifies them.
func (n *NotifyService) notifyUserID(ctx context.Context, sr *domain.ServiceRequest, prev, next domain.Status, userID string) {
	user, err := repo.GetUserByID(ctx, n.DB, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("notify: recipient lookup failed")
		return
	}
	n.notifyUser(ctx, sr, prev, next, user)
}

// notifyUser writes the in-app row and then attempts the email send. Each
// step fails independently; a failed email never removes the in-app row and
// never blocks other recipients.
func (n *NotifyService) notifyUser(ctx context.Context, sr *domain.ServiceRequest, prev, next domain.Status, user *domain.User) {
	err := repo.CreateNotification(ctx, n.DB, &domain.Notification{
		UserID:    user.ID,
		Type:      "status_change",
		Title:     "Status Updated: " + humanizeStatus(next),
		Message:   "Service request " + sr.ID + " moved from " + string(prev) + " to " + string(next) + ".",
		RelatedID: sr.ID,
		Channel:   "in_app",
	})
	if err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("notify: in-app insert failed")
	}

	if n.Email == nil {
		return
	}
	err = n.Email.SendStatusEmail(ctx, notify.StatusEmail{
		ServiceRequestID: sr.ID,
		PreviousStatus:   string(prev),
		NewStatus:        string(next),
		RecipientEmail:   user.Email,
		RecipientName:    user.Name,
	})
	if err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("notify: email send failed")
	}
}
