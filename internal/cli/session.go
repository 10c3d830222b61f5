package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abduss/memorylane/internal/authclient"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Interactive client for the session endpoints",
	Long: `Opens a prompt that logs in, registers and logs out against a running
MemoryLane API. The last known user is cached in a local SQLite file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		client, err := authclient.NewClient(cfg.Client.BaseURL, cfg.Client.Timeout)
		if err != nil {
			return err
		}
		mirror, err := authclient.OpenSQLiteMirror(cmd.Context(), cfg.Client.MirrorPath)
		if err != nil {
			return err
		}
		defer mirror.Close()

		out := cmd.OutOrStdout()
		coord := authclient.NewCoordinator(client, mirror,
			authclient.WithLogger(log),
			authclient.WithIdentityProvider(cfg.Client.IdP, printRedirect(out)),
		)

		s := &session{
			coord: coord,
			in:    bufio.NewReader(cmd.InOrStdin()),
			out:   out,
		}
		s.readSecret = s.promptSecret
		s.run(cmd.Context())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
}

// coordinator is the part of authclient.Coordinator the prompt drives.
type coordinator interface {
	Snapshot() authclient.Snapshot
	CheckAuthStatus(ctx context.Context) authclient.Snapshot
	Login(ctx context.Context, identifier, password string) (authclient.Snapshot, error)
	Register(ctx context.Context, req authclient.RegisterRequest) (authclient.Snapshot, error)
	CompleteOAuth(ctx context.Context, profile authclient.Profile) (authclient.Snapshot, bool, error)
	Logout(ctx context.Context) authclient.Snapshot
}

type session struct {
	coord      coordinator
	in         *bufio.Reader
	out        io.Writer
	readSecret func(prompt string) (string, error)
}

func printRedirect(w io.Writer) authclient.RedirectFunc {
	return func(_ context.Context, target string) error {
		_, err := fmt.Fprintf(w, "Open this URL to end the identity provider session:\n  %s\n", target)
		return err
	}
}

func (s *session) run(ctx context.Context) {
	s.printStatus(s.coord.CheckAuthStatus(ctx))

	for {
		fmt.Fprintf(s.out, "memorylane %s> ", s.coord.Snapshot().State)
		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(s.out)
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "help":
			fmt.Fprintln(s.out, "Available commands: status, register, login, oauth, logout, exit")
		case "status", "whoami":
			s.printStatus(s.coord.CheckAuthStatus(ctx))
		case "register":
			s.register(ctx)
		case "login":
			s.login(ctx)
		case "oauth":
			s.oauth(ctx)
		case "logout":
			s.printStatus(s.coord.Logout(ctx))
		case "exit", "quit":
			fmt.Fprintln(s.out, "Bye!")
			return
		default:
			fmt.Fprintln(s.out, "Unknown command:", fields[0])
		}
	}
}

func (s *session) register(ctx context.Context) {
	username, err := s.prompt("Username")
	if err != nil {
		return
	}
	email, err := s.prompt("Email")
	if err != nil {
		return
	}
	password, err := s.readSecret("Password")
	if err != nil {
		return
	}

	snap, err := s.coord.Register(ctx, authclient.RegisterRequest{Username: username, Email: email, Password: password})
	s.report(snap, err)
}

func (s *session) login(ctx context.Context) {
	identifier, err := s.prompt("Email or username")
	if err != nil {
		return
	}
	password, err := s.readSecret("Password")
	if err != nil {
		return
	}

	snap, err := s.coord.Login(ctx, identifier, password)
	s.report(snap, err)
}

// oauth forwards a profile as the identity provider callback would.
func (s *session) oauth(ctx context.Context) {
	email, err := s.prompt("Provider email")
	if err != nil {
		return
	}
	name, err := s.prompt("Display name")
	if err != nil {
		return
	}

	snap, isNew, err := s.coord.CompleteOAuth(ctx, authclient.Profile{Email: email, Name: name})
	if err == nil && isNew {
		fmt.Fprintln(s.out, "Account created.")
	}
	s.report(snap, err)
}

func (s *session) report(snap authclient.Snapshot, err error) {
	if err != nil {
		fmt.Fprintln(s.out, "Error:", authclient.UserMessage(err))
		return
	}
	s.printStatus(snap)
}

func (s *session) printStatus(snap authclient.Snapshot) {
	if !snap.Authenticated() {
		fmt.Fprintln(s.out, "Not signed in.")
		return
	}
	suffix := ""
	if !snap.Verified {
		suffix = " (not verified by server)"
	}
	fmt.Fprintf(s.out, "Signed in as %s <%s>%s\n", snap.User.UserName, snap.User.Email, suffix)
}

func (s *session) prompt(label string) (string, error) {
	fmt.Fprintf(s.out, "%s: ", label)
	line, err := s.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo when stdin is a terminal.
func (s *session) promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return s.prompt(label)
	}

	fmt.Fprintf(s.out, "%s: ", label)
	pw, err := readPassword(fd)
	fmt.Fprintln(s.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
