package domain

// Action names an operation subject to the advisory capability check.
type Action string

const (
	ActionBrowseServices Action = "services:browse"
	ActionCreateService  Action = "services:create"
	ActionEditService    Action = "services:edit"
	ActionDeleteService  Action = "services:delete"
	ActionListMyServices Action = "services:mine"
	ActionCreateBooking  Action = "bookings:create"
	ActionCancelBooking  Action = "bookings:cancel"
	ActionViewBookings   Action = "bookings:view"
	ActionAddBalance     Action = "balance:add"
	ActionViewLedger     Action = "transactions:view"
)

// Decision is the outcome of a capability check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Err returns an AUTHORIZATION_ERROR for a denied decision, nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &AppError{Type: TypeAuthorization, Message: d.Reason}
}

var capabilities = map[Action]map[UserType]bool{
	ActionBrowseServices: {UserTypeClient: true, UserTypeProvider: true},
	ActionCreateService:  {UserTypeProvider: true},
	ActionEditService:    {UserTypeProvider: true},
	ActionDeleteService:  {UserTypeProvider: true},
	ActionListMyServices: {UserTypeProvider: true},
	ActionCreateBooking:  {UserTypeClient: true},
	ActionCancelBooking:  {UserTypeClient: true, UserTypeProvider: true},
	ActionViewBookings:   {UserTypeClient: true, UserTypeProvider: true},
	ActionAddBalance:     {UserTypeClient: true},
	ActionViewLedger:     {UserTypeClient: true, UserTypeProvider: true},
}

// Can decides whether userType may perform action. The check only
// short-circuits obviously invalid actions; the server enforces the rules.
func Can(userType UserType, action Action) Decision {
	if userType == "" {
		return Decision{Reason: "you must be signed in"}
	}
	roles, ok := capabilities[action]
	if !ok {
		return Decision{Reason: "unknown action " + string(action)}
	}
	if !roles[userType] {
		return Decision{Reason: string(userType) + " accounts cannot perform " + string(action)}
	}
	return Decision{Allowed: true}
}
