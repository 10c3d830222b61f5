package cli

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/abduss/memorylane/internal/authclient"
	"github.com/abduss/memorylane/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCoordinator struct {
	snap  authclient.Snapshot
	calls []string
	login authclient.RegisterRequest
}

func (f *fakeCoordinator) Snapshot() authclient.Snapshot { return f.snap }

func (f *fakeCoordinator) CheckAuthStatus(context.Context) authclient.Snapshot {
	f.calls = append(f.calls, "check")
	if f.snap.State == authclient.StateInitializing {
		f.snap = authclient.Snapshot{State: authclient.StateUnauthenticated}
	}
	return f.snap
}

func (f *fakeCoordinator) Login(_ context.Context, identifier, password string) (authclient.Snapshot, error) {
	f.calls = append(f.calls, "login")
	f.login = authclient.RegisterRequest{Email: identifier, Password: password}
	if password != "secret1" {
		f.snap = authclient.Snapshot{State: authclient.StateUnauthenticated}
		return f.snap, &authclient.APIError{Status: 401, Message: "Password is incorrect"}
	}
	f.snap = authclient.Snapshot{
		State:    authclient.StateAuthenticated,
		User:     &user.Public{UserName: "alice", Email: "a@x.com"},
		Verified: true,
	}
	return f.snap, nil
}

func (f *fakeCoordinator) Register(_ context.Context, req authclient.RegisterRequest) (authclient.Snapshot, error) {
	f.calls = append(f.calls, "register")
	f.snap = authclient.Snapshot{
		State: authclient.StateAuthenticated,
		User:  &user.Public{UserName: req.Username, Email: req.Email},
	}
	return f.snap, nil
}

func (f *fakeCoordinator) CompleteOAuth(_ context.Context, p authclient.Profile) (authclient.Snapshot, bool, error) {
	f.calls = append(f.calls, "oauth")
	f.snap = authclient.Snapshot{
		State:    authclient.StateAuthenticated,
		User:     &user.Public{UserName: strings.ToLower(p.Name), Email: p.Email},
		Verified: true,
	}
	return f.snap, true, nil
}

func (f *fakeCoordinator) Logout(context.Context) authclient.Snapshot {
	f.calls = append(f.calls, "logout")
	f.snap = authclient.Snapshot{State: authclient.StateUnauthenticated}
	return f.snap
}

func runSession(t *testing.T, coord coordinator, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	s := &session{
		coord: coord,
		in:    bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n")),
		out:   &out,
	}
	s.readSecret = s.prompt
	s.run(context.Background())
	return out.String()
}

func TestSessionLoginLogout(t *testing.T) {
	coord := &fakeCoordinator{}

	out := runSession(t, coord,
		"login", "alice", "wrong",
		"login", "a@x.com", "secret1",
		"logout",
		"exit",
	)

	assert.Equal(t, []string{"check", "login", "login", "logout"}, coord.calls)
	assert.Equal(t, "a@x.com", coord.login.Email)
	assert.Contains(t, out, "Error: Incorrect password. Please try again.")
	assert.Contains(t, out, "Signed in as alice <a@x.com>\n")
	assert.Contains(t, out, "memorylane authenticated> ")
	assert.True(t, strings.HasSuffix(out, "Bye!\n"))
}

func TestSessionRegisterIsUnverified(t *testing.T) {
	coord := &fakeCoordinator{}

	out := runSession(t, coord, "register", "bob", "b@y.com", "pw")
	require.Equal(t, []string{"check", "register"}, coord.calls)
	assert.Contains(t, out, "Signed in as bob <b@y.com> (not verified by server)")
}

func TestSessionOAuthAndUnknownCommand(t *testing.T) {
	coord := &fakeCoordinator{}

	out := runSession(t, coord, "", "oauth", "c@z.com", "Carol", "dance", "quit")
	assert.Contains(t, out, "Account created.")
	assert.Contains(t, out, "Signed in as carol <c@z.com>")
	assert.Contains(t, out, "Unknown command: dance")
}

func TestPrintRedirect(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printRedirect(&out)(context.Background(), "https://tenant.auth0.com/v2/logout"))
	assert.Contains(t, out.String(), "https://tenant.auth0.com/v2/logout")
}
