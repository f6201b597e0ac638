package domain

// Actor is the authenticated caller forwarded by the upstream gateway.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// SystemActor is used for sweeps that run without a caller.
var SystemActor = Actor{ID: "system", Name: "system", Role: RoleAdmin}

type Permission string

const (
	PermPlaceOrder        Permission = "place_order"
	PermPayOrder          Permission = "pay_order"
	PermProcessPayments   Permission = "process_payments"
	PermUpdateOrderStatus Permission = "update_order_status"
	PermViewQueue         Permission = "view_queue"
	PermManageQueue       Permission = "manage_queue"
)

var rolePermissions = map[Role][]Permission{
	RoleStudent: {PermPlaceOrder, PermPayOrder, PermViewQueue},
	RoleStaff: {
		PermPlaceOrder, PermPayOrder, PermProcessPayments,
		PermUpdateOrderStatus, PermViewQueue, PermManageQueue,
	},
	RoleKitchen: {PermUpdateOrderStatus, PermViewQueue},
	RoleAdmin: {
		PermPlaceOrder, PermPayOrder, PermProcessPayments,
		PermUpdateOrderStatus, PermViewQueue, PermManageQueue,
	},
}

// Can reports whether the actor's role grants p.
func (a Actor) Can(p Permission) bool {
	for _, granted := range rolePermissions[a.Role] {
		if granted == p {
			return true
		}
	}
	return false
}

// IsCustomer reports whether the actor is limited to its own orders.
func (a Actor) IsCustomer() bool {
	return a.Role.IsCustomer()
}
