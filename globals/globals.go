package globals

// Context keys
type ContextKey string

const (
	UsernameKey  ContextKey = "username"
	StaffKey     ContextKey = "staff"
	SuperuserKey ContextKey = "superuser"
)
