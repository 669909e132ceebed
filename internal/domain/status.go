// Service request status lifecycle: the status and role enums, the per-role
// transition tables, and the field projections applied by the generic update
// endpoint. The tables are package-level constants in spirit: they are built
// once at init and never mutated at runtime.
package domain

// Status is a member of the service request lifecycle enum.
type Status string

const (
	StatusPending              Status = "pending"
	StatusAccepted             Status = "accepted"
	StatusDriverAssignedPickup Status = "driver_assigned_pickup"
	StatusInTransitToShop      Status = "in_transit_to_shop"
	StatusAtShop               Status = "at_shop"
	StatusInProgress           Status = "in_progress"
	StatusCompleted            Status = "completed"
	StatusPendingPayment       Status = "pending_payment"
	StatusPaid                 Status = "paid"
	StatusDriverAssignedReturn Status = "driver_assigned_return"
	StatusInTransitToOwner     Status = "in_transit_to_owner"
	StatusDelivered            Status = "delivered"
	StatusCancelled            Status = "cancelled"
)

// Role identifies the kind of actor performing an operation.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
	RoleMechanic Role = "mechanic" // a.k.a. shop
	RoleDriver   Role = "driver"
)

// allStatuses enumerates every valid status value.
var allStatuses = map[Status]struct{}{
	StatusPending:              {},
	StatusAccepted:             {},
	StatusDriverAssignedPickup: {},
	StatusInTransitToShop:      {},
	StatusAtShop:               {},
	StatusInProgress:           {},
	StatusCompleted:            {},
	StatusPendingPayment:       {},
	StatusPaid:                 {},
	StatusDriverAssignedReturn: {},
	StatusInTransitToOwner:     {},
	StatusDelivered:            {},
	StatusCancelled:            {},
}

// ValidStatus reports whether s is a member of the status enum.
func ValidStatus(s Status) bool {
	_, ok := allStatuses[s]
	return ok
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleCustomer, RoleMechanic, RoleDriver:
		return true
	}
	return false
}

// transitions maps (role, current status) to the statuses that role may move
// the request to. Absent pairs deny everything.
//
// The admin table is symmetric over the full lifecycle graph, so admin
// transitions pass the mutual check used by the status-update endpoint in
// both directions. The customer table carries the mirror entry for
// cancellation for the same reason. Shop and driver tables are mostly
// one-directional.
var transitions = map[Role]map[Status][]Status{
	RoleAdmin: {
		StatusPending:              {StatusAccepted, StatusCancelled},
		StatusAccepted:             {StatusPending, StatusDriverAssignedPickup, StatusCancelled},
		StatusDriverAssignedPickup: {StatusAccepted, StatusInTransitToShop},
		StatusInTransitToShop:      {StatusDriverAssignedPickup, StatusAtShop},
		StatusAtShop:               {StatusInTransitToShop, StatusInProgress},
		StatusInProgress:           {StatusAtShop, StatusCompleted},
		StatusCompleted:            {StatusInProgress, StatusPendingPayment},
		StatusPendingPayment:       {StatusCompleted, StatusPaid},
		StatusPaid:                 {StatusPendingPayment, StatusDriverAssignedReturn},
		StatusDriverAssignedReturn: {StatusPaid, StatusInTransitToOwner},
		StatusInTransitToOwner:     {StatusDriverAssignedReturn, StatusDelivered},
		StatusDelivered:            {StatusInTransitToOwner},
		StatusCancelled:            {StatusPending, StatusAccepted},
	},
	RoleCustomer: {
		StatusPending:        {StatusCancelled},
		StatusAccepted:       {StatusCancelled},
		StatusCancelled:      {StatusPending, StatusAccepted},
		StatusPendingPayment: {StatusPaid},
	},
	RoleMechanic: {
		StatusPending:        {StatusAccepted, StatusCancelled},
		StatusAccepted:       {StatusPending, StatusInProgress},
		StatusAtShop:         {StatusInProgress},
		StatusInProgress:     {StatusAtShop, StatusCompleted},
		StatusCompleted:      {StatusInProgress, StatusPendingPayment},
		StatusPendingPayment: {StatusCompleted},
		StatusPaid:           {StatusDriverAssignedReturn},
	},
	RoleDriver: {
		StatusAccepted:             {StatusDriverAssignedPickup},
		StatusDriverAssignedPickup: {StatusInTransitToShop},
		StatusInTransitToShop:      {StatusAtShop},
		StatusPaid:                 {StatusDriverAssignedReturn},
		StatusDriverAssignedReturn: {StatusInTransitToOwner},
		StatusInTransitToOwner:     {StatusDelivered},
	},
}

func contains(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// TransitionAllowed reports whether role may move a request from one status
// to another, consulting the transition table in the forward direction only.
// Used by the generic resource update endpoint.
func TransitionAllowed(role Role, from, to Status) bool {
	next, ok := transitions[role][from]
	if !ok {
		return false
	}
	return contains(next, to)
}

// TransitionAllowedMutual applies the stricter rule used by the dedicated
// status-update endpoint: the transition must be listed in both directions,
// table[role][from] containing to AND table[role][to] containing from.
// Only roles with symmetric entries (admin, and the customer cancellation
// pair) can pass it.
func TransitionAllowedMutual(role Role, from, to Status) bool {
	return TransitionAllowed(role, from, to) && TransitionAllowed(role, to, from)
}

// priceEditable lists the statuses during which the assigned shop may still
// set or revise the price.
var priceEditable = map[Status]struct{}{
	StatusPending:   {},
	StatusAccepted:  {},
	StatusAtShop:    {},
	StatusInProgress: {},
	StatusCompleted: {},
}

// customerStatusEditable lists the statuses from which a customer may submit
// a status change through the generic update endpoint.
var customerStatusEditable = map[Status]struct{}{
	StatusPending:        {},
	StatusAccepted:       {},
	StatusPendingPayment: {},
}

// driverStatusEditable lists the statuses during which a driver is actively
// involved and may submit updates.
var driverStatusEditable = map[Status]struct{}{
	StatusAccepted:             {},
	StatusDriverAssignedPickup: {},
	StatusInTransitToShop:      {},
	StatusPaid:                 {},
	StatusDriverAssignedReturn: {},
	StatusInTransitToOwner:     {},
}

// Updatable field names accepted by the generic update endpoint.
const (
	FieldStatus         = "status"
	FieldPrice          = "price"
	FieldNotes          = "notes"
	FieldShopID         = "shop_id"
	FieldPickupDriverID = "pickup_driver_id"
	FieldReturnDriverID = "return_driver_id"
)

// AllowedUpdateFields returns the set of body fields role may write through
// the generic update endpoint while the request is in the given status. An
// empty set means the role has nothing to update in this state and the
// request must be rejected.
func AllowedUpdateFields(role Role, current Status) map[string]struct{} {
	out := map[string]struct{}{}
	switch role {
	case RoleAdmin:
		out[FieldStatus] = struct{}{}
		out[FieldPrice] = struct{}{}
		out[FieldNotes] = struct{}{}
		out[FieldShopID] = struct{}{}
		out[FieldPickupDriverID] = struct{}{}
		out[FieldReturnDriverID] = struct{}{}
	case RoleCustomer:
		out[FieldNotes] = struct{}{}
		if _, ok := customerStatusEditable[current]; ok {
			out[FieldStatus] = struct{}{}
		}
	case RoleMechanic:
		out[FieldStatus] = struct{}{}
		out[FieldNotes] = struct{}{}
		if _, ok := priceEditable[current]; ok {
			out[FieldPrice] = struct{}{}
		}
		if current == StatusAccepted {
			out[FieldPickupDriverID] = struct{}{}
		}
		if current == StatusPaid {
			out[FieldReturnDriverID] = struct{}{}
		}
	case RoleDriver:
		if _, ok := driverStatusEditable[current]; ok {
			out[FieldStatus] = struct{}{}
			out[FieldNotes] = struct{}{}
		}
	}
	return out
}
