package shop

type Role string

const (
	RoleCustomer Role = "customer"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Viewer is whoever issued the request. A zero Viewer is anonymous.
type Viewer struct {
	UserID string
	Role   Role
}

func (v Viewer) Anonymous() bool { return v.UserID == "" }

// Supervisor covers the roles allowed to change store settings.
func (v Viewer) Supervisor() bool {
	return !v.Anonymous() && (v.Role == RoleManager || v.Role == RoleAdmin)
}

// RequireUser fails with Forbidden for anonymous viewers.
func (v Viewer) RequireUser() error {
	if v.Anonymous() {
		return &Error{Kind: KindForbidden, Message: "sign in required"}
	}
	return nil
}

func (v Viewer) RequireSupervisor() error {
	if !v.Supervisor() {
		return &Error{Kind: KindForbidden, Message: "supervisor role required"}
	}
	return nil
}
