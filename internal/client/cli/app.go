package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/client/api"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Session is the subset of api.Client the REPL drives.
type Session interface {
	Register(ctx context.Context, username string, password []byte) (models.PublicUser, error)
	Login(ctx context.Context, username string, password []byte) (models.PublicUser, error)
	Me(ctx context.Context) (models.PublicUser, error)
	Logout()
}

type App struct {
	session  Session
	prompt   *prompter
	out      io.Writer
	userName string
}

// NewApp builds an App talking to cfg.ServerURL over stdin/stdout.
func NewApp(cfg *config.Config) *App {
	return newApp(api.New(cfg.ServerURL, cfg.RequestTimeout), os.Stdin, os.Stdout, int(os.Stdin.Fd()))
}

func newApp(s Session, in io.Reader, out io.Writer, fd int) *App {
	return &App{
		session: s,
		prompt:  &prompter{in: bufio.NewReader(in), out: out, fd: fd},
		out:     out,
	}
}

func (a *App) isLoggedIn() bool { return a.userName != "" }

func (a *App) status() string {
	if a.userName == "" {
		return "gophauth> "
	}
	return fmt.Sprintf("gophauth (%s)> ", a.userName)
}

// Run executes commands until exit or end of input.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "gophauth CLI (type 'help' for commands)")

	for {
		fmt.Fprint(a.out, a.status())
		line, err := a.prompt.line("")
		if err != nil {
			fmt.Fprintln(a.out)
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch cmd := fields[0]; cmd {
		case "help":
			a.help()
		case "register":
			a.report(a.Register(ctx))
		case "login":
			a.report(a.Login(ctx))
		case "me":
			a.report(a.Me(ctx))
		case "logout":
			a.Logout()
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		default:
			fmt.Fprintln(a.out, "Unknown command:", cmd)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func (a *App) help() {
	if a.isLoggedIn() {
		fmt.Fprintln(a.out, "Available commands: me, logout, exit")
	} else {
		fmt.Fprintln(a.out, "Available commands: register, login, exit")
	}
}

func (a *App) report(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, api.ErrUnauthorized) {
		a.userName = ""
		a.session.Logout()
		fmt.Fprintln(a.out, "Session expired, please log in again")
		return
	}
	fmt.Fprintln(a.out, "Error:", err)
}

// credentials asks for a username and password. The password must be
// wiped by the caller.
func (a *App) credentials() (string, []byte, error) {
	username, err := a.prompt.line("Username")
	if err != nil {
		return "", nil, err
	}
	password, err := a.prompt.secret("Password")
	if err != nil {
		return "", nil, err
	}
	return username, password, nil
}

// Register creates an account and logs into it.
func (a *App) Register(ctx context.Context) error {
	return a.authenticate(ctx, a.session.Register)
}

// Login authenticates an existing account.
func (a *App) Login(ctx context.Context) error {
	return a.authenticate(ctx, a.session.Login)
}

func (a *App) authenticate(ctx context.Context, fn func(context.Context, string, []byte) (models.PublicUser, error)) error {
	username, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := fn(ctx, username, password)
	if err != nil {
		return err
	}

	a.userName = u.Username
	fmt.Fprintf(a.out, "Logged in as %s\n", u.Username)
	return nil
}

// Me prints the account bound to the current session.
func (a *App) Me(ctx context.Context) error {
	u, err := a.session.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "id: %s\nusername: %s\n", u.ID, u.Username)
	return nil
}

// Logout drops the session token.
func (a *App) Logout() {
	a.session.Logout()
	a.userName = ""
	fmt.Fprintln(a.out, "Logged out")
}
