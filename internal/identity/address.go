package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Role distinguishes the two sides of a conversation. Students and
// counselors live in separate namespaces: a student is addressed by an
// opaque internal id, a counselor by their verified email.
type Role string

const (
	RoleStudent   Role = "student"
	RoleCounselor Role = "counselor"
)

// Counterpart returns the role on the other side of a conversation.
func (r Role) Counterpart() Role {
	if r == RoleStudent {
		return RoleCounselor
	}
	return RoleStudent
}

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleCounselor
}

var ErrUnresolvedIdentity = errors.New("unresolved identity")

// Address is the tagged identity used everywhere downstream of the
// resolver. It is comparable, so it can key maps directly; keying by the
// full (role, value) pair means a student id and a counselor email that
// happen to coincide lexically can never collide.
type Address struct {
	role  Role
	value string
}

// Student addresses a student by their opaque internal id.
func Student(id string) Address {
	return Address{role: RoleStudent, value: id}
}

// Counselor addresses a counselor by their verified email.
func Counselor(email string) Address {
	return Address{role: RoleCounselor, value: strings.ToLower(email)}
}

// ForRole builds an address of the given role from its raw value.
func ForRole(role Role, value string) (Address, error) {
	switch role {
	case RoleStudent:
		if value == "" {
			return Address{}, ErrUnresolvedIdentity
		}
		return Student(value), nil
	case RoleCounselor:
		if !looksLikeEmail(value) {
			return Address{}, ErrUnresolvedIdentity
		}
		return Counselor(value), nil
	default:
		return Address{}, ErrUnresolvedIdentity
	}
}

func (a Address) Role() Role    { return a.role }
func (a Address) Value() string { return a.value }
func (a Address) IsZero() bool  { return a.role == "" && a.value == "" }

// String renders the role-qualified form used in logs and cache keys.
func (a Address) String() string {
	return fmt.Sprintf("%s:%s", a.role, a.value)
}

// Display is the name shown to the counterpart and to the moderation
// consumer: the counselor's email, or the student's anonymous handle.
func (a Address) Display() string {
	return a.value
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	role, value, ok := strings.Cut(string(b), ":")
	if !ok {
		return ErrUnresolvedIdentity
	}
	addr, err := ForRole(Role(role), value)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

func looksLikeEmail(s string) bool {
	at := strings.Index(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}
