package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressNoCrossNamespaceCollision(t *testing.T) {
	t.Parallel()

	// A student id that happens to look like a counselor email must still
	// key differently from the counselor address with the same text.
	s := Student("casey@uni.edu")
	c := Counselor("casey@uni.edu")

	assert.NotEqual(t, s, c)

	seen := map[Address]string{s: "student", c: "counselor"}
	assert.Len(t, seen, 2)
}

func TestForRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		role    Role
		value   string
		wantErr bool
	}{
		{"student ok", RoleStudent, "anon-7f3a", false},
		{"student empty", RoleStudent, "", true},
		{"counselor ok", RoleCounselor, "c@uplift.org", false},
		{"counselor not an email", RoleCounselor, "not-an-email", true},
		{"counselor empty", RoleCounselor, "", true},
		{"unknown role", Role("admin"), "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ForRole(tt.role, tt.value)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnresolvedIdentity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.role, addr.Role())
		})
	}
}

func TestCounselorEmailNormalized(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Counselor("c@uplift.org"), Counselor("C@Uplift.Org"))
}

func TestAddressTextRoundTrip(t *testing.T) {
	t.Parallel()

	orig := Student("anon-7f3a")
	b, err := orig.MarshalText()
	require.NoError(t, err)

	var got Address
	require.NoError(t, got.UnmarshalText(b))
	assert.Equal(t, orig, got)
}

func TestRoleCounterpart(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RoleCounselor, RoleStudent.Counterpart())
	assert.Equal(t, RoleStudent, RoleCounselor.Counterpart())
}

func TestResolve(t *testing.T) {
	t.Parallel()

	addr, err := Resolve(SessionContext{Role: "student", StudentID: "anon-1"})
	require.NoError(t, err)
	assert.Equal(t, Student("anon-1"), addr)

	addr, err = Resolve(SessionContext{Role: "counselor", Email: "c@uplift.org"})
	require.NoError(t, err)
	assert.Equal(t, Counselor("c@uplift.org"), addr)

	_, err = Resolve(SessionContext{Role: "counselor", StudentID: "anon-1"})
	require.ErrorIs(t, err, ErrUnresolvedIdentity)

	_, err = Resolve(SessionContext{})
	require.ErrorIs(t, err, ErrUnresolvedIdentity)
}
