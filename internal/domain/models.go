// Package domain defines the persistence models for the MechanicOnDemand
// marketplace: users, shops, vehicles, service requests, status history,
// notifications, and payments. These types are mapped with GORM and form
// the core data layer of the application.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// User is any authenticated actor: customer, mechanic (shop owner), driver,
// or admin. APIToken is the demo bearer credential; a hosted auth provider
// owns real identity in production.
type User struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"      gorm:"type:varchar(128);not null"`
	Email     string    `json:"email"     gorm:"type:varchar(255);not null;index"`
	Role      Role      `json:"role"      gorm:"type:varchar(16);not null"`
	APIToken  string    `json:"-"         gorm:"type:varchar(128);uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Shop is a repair shop. OwnerUserID links the mechanic account that acts
// on behalf of the shop; permission checks resolve shop identity through it.
type Shop struct {
	ID          string    `json:"id"            gorm:"type:char(36);primaryKey"`
	OwnerUserID string    `json:"owner_user_id" gorm:"type:char(36);not null;index"`
	Name        string    `json:"name"          gorm:"type:varchar(128);not null"`
	Email       string    `json:"email"         gorm:"type:varchar(255);not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Shop.
func (Shop) TableName() string { return "shops" }

// Vehicle is the customer's car attached to a service request.
type Vehicle struct {
	ID          string    `json:"id"            gorm:"type:char(36);primaryKey"`
	OwnerUserID string    `json:"owner_user_id" gorm:"type:char(36);not null;index"`
	Make        string    `json:"make"          gorm:"type:varchar(64)"`
	Model       string    `json:"model"         gorm:"type:varchar(64)"`
	Year        int       `json:"year"`
	Plate       string    `json:"plate"         gorm:"type:varchar(16)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Vehicle.
func (Vehicle) TableName() string { return "vehicles" }

// Note is a single structured annotation on a service request.
type Note struct {
	Text        string    `json:"text"`
	AddedBy     string    `json:"added_by"`
	AddedByRole Role      `json:"added_by_role"`
	AddedAt     time.Time `json:"added_at"`
}

// NoteList is an ordered list of notes stored as a JSON text column.
type NoteList []Note

// Value implements driver.Valuer, serializing the list to JSON.
func (n NoteList) Value() (driver.Value, error) {
	if n == nil {
		return "[]", nil
	}
	b, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner, deserializing the JSON text column.
func (n *NoteList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n = nil
		return nil
	case []byte:
		if len(v) == 0 {
			*n = nil
			return nil
		}
		return json.Unmarshal(v, n)
	case string:
		if v == "" {
			*n = nil
			return nil
		}
		return json.Unmarshal([]byte(v), n)
	default:
		return errors.New("notes: unsupported column type")
	}
}

// ServiceRequest is a customer's repair job tracked through the status
// lifecycle. Requests are never hard-deleted; cancellation is a status.
//
// Fields:
//   - Status: must always be a member of the status enum; every change goes
//     through the transition tables in status.go.
//   - Price: quoted by the assigned shop; copied onto the lazily created
//     Payment when the request enters pending_payment.
//   - Notes: append-only structured annotations (JSON column).
type ServiceRequest struct {
	ID             string     `json:"id"               gorm:"type:char(36);primaryKey"`
	CustomerID     string     `json:"customer_id"      gorm:"type:char(36);not null;index:idx_customer_requests"`
	VehicleID      string     `json:"vehicle_id"       gorm:"type:char(36);not null;index"`
	ShopID         *string    `json:"shop_id"          gorm:"type:char(36);index"`
	PickupDriverID *string    `json:"pickup_driver_id" gorm:"type:char(36);index"`
	ReturnDriverID *string    `json:"return_driver_id" gorm:"type:char(36);index"`
	Status         Status     `json:"status"           gorm:"type:varchar(32);not null;index"`
	Price          *float64   `json:"price"`
	Notes          NoteList   `json:"notes"            gorm:"type:text"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Vehicle *Vehicle `json:"vehicle,omitempty" gorm:"foreignKey:VehicleID;references:ID"`
	Shop    *Shop    `json:"shop,omitempty"    gorm:"foreignKey:ShopID;references:ID"`
	Payment *Payment `json:"payment,omitempty" gorm:"foreignKey:ServiceRequestID;references:ID"`
}

// TableName returns the database table name for ServiceRequest.
func (ServiceRequest) TableName() string { return "service_requests" }

// StatusHistory is an append-only log entry recorded once per successful
// transition. Rows are immutable after insert.
type StatusHistory struct {
	ID               string    `json:"id"                 gorm:"type:char(36);primaryKey"`
	ServiceRequestID string    `json:"service_request_id" gorm:"type:char(36);not null;index:idx_request_history,priority:1"`
	PreviousStatus   Status    `json:"previous_status"    gorm:"type:varchar(32);not null"`
	NewStatus        Status    `json:"new_status"         gorm:"type:varchar(32);not null"`
	ChangedBy        string    `json:"changed_by"         gorm:"type:char(36);not null"`
	ChangedByRole    Role      `json:"changed_by_role"    gorm:"type:varchar(16);not null"`
	Notes            string    `json:"notes"              gorm:"type:text"`
	CreatedAt        time.Time `json:"created_at"         gorm:"index:idx_request_history,priority:2"`
}

// TableName returns the database table name for StatusHistory.
func (StatusHistory) TableName() string { return "status_history" }

// Notification is an in-app message created by the dispatcher for each
// stakeholder on every status change. Only IsRead is mutated afterwards.
type Notification struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;index:idx_user_notifications,priority:1"`
	Type      string    `json:"type"       gorm:"type:varchar(64);not null"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null"`
	Message   string    `json:"message"    gorm:"type:text;not null"`
	RelatedID string    `json:"related_id" gorm:"type:char(36);index"`
	IsRead    bool      `json:"is_read"    gorm:"not null;default:false"`
	Channel   string    `json:"channel"    gorm:"type:varchar(16);not null;default:'in_app'"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_user_notifications,priority:2"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Payment is created lazily the first time a request transitions into
// pending_payment, with Amount copied from the request price at that moment.
// The unique index on ServiceRequestID guarantees at most one payment per
// request even under concurrent duplicate transitions.
type Payment struct {
	ID               string    `json:"id"                 gorm:"type:char(36);primaryKey"`
	ServiceRequestID string    `json:"service_request_id" gorm:"type:char(36);not null;uniqueIndex:ux_payment_request"`
	Amount           float64   `json:"amount"             gorm:"not null"`
	Status           string    `json:"status"             gorm:"type:varchar(32);not null;default:'pending'"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for Payment.
func (Payment) TableName() string { return "payments" }
