package identity

// SessionContext carries the raw credential material extracted from a
// validated session token. Downstream components never see it; they only
// see the Address it resolves to.
type SessionContext struct {
	Role      string
	StudentID string
	Email     string
}

// Resolve maps a session context to its canonical address. It fails with
// ErrUnresolvedIdentity when the context carries neither a valid student
// id nor a counselor email; callers must reject the operation rather than
// guess a type.
func Resolve(sc SessionContext) (Address, error) {
	switch Role(sc.Role) {
	case RoleStudent:
		return ForRole(RoleStudent, sc.StudentID)
	case RoleCounselor:
		return ForRole(RoleCounselor, sc.Email)
	}
	return Address{}, ErrUnresolvedIdentity
}
