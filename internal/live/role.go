package live

// Role is what a connected session may do.
type Role int32

// Roles. Every session starts as a listener.
const (
	RoleListener Role = iota
	RoleBroadcaster
)

// String returns the role name used on the wire.
func (r Role) String() string {
	switch r {
	case RoleListener:
		return "listener"
	case RoleBroadcaster:
		return "broadcaster"
	default:
		return "unknown"
	}
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
