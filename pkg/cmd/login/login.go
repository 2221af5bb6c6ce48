package login

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/docflow-session-go/log"
	"github.com/mpapenbr/docflow-session-go/pkg/cmd/env"
	"github.com/mpapenbr/docflow-session-go/pkg/idp"
)

var (
	returnTo string
	timeout  time.Duration
	force    bool
)

var ErrLoginFailed = errors.New("login failed")

func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "log in via the hosted login page",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&returnTo, "return-to", "/",
		"location to report after a successful login")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute,
		"time to wait for the login to complete")
	cmd.Flags().BoolVar(&force, "force", false,
		"log in again even if a session exists")
	return cmd
}

func runLogin(ctx context.Context, out io.Writer) error {
	e, err := env.Setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if u := e.State.CurrentUser(ctx); u != nil && !force {
		fmt.Fprintf(out, "already logged in as %s (%s)\n", u.DisplayName, u.Role)
		return nil
	}
	client, err := idp.New(ctx, e.Config, e.Tab, e.Tokens)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	srv, err := newCallbackServer(e.Config.RedirectURI, client)
	if err != nil {
		return err
	}
	if err := srv.start(); err != nil {
		return err
	}
	defer srv.stop()

	loginURL, err := client.LoginURL(ctx, returnTo)
	if err != nil {
		return err
	}
	// the lock suppresses duplicate redirects while the browser is busy
	e.Lock.Lock(ctx)
	fmt.Fprintf(out, "Open the following URL in your browser:\n\n  %s\n\n", loginURL)

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrLoginFailed, ctx.Err())
	case res := <-srv.result:
		if res.err != nil {
			return fmt.Errorf("%w: %w", ErrLoginFailed, res.err)
		}
		if u := e.State.CurrentUser(ctx); u != nil {
			fmt.Fprintf(out, "logged in as %s (%s)\n", u.DisplayName, u.Role)
		}
		fmt.Fprintf(out, "continue at %s\n", res.returnTo)
		return nil
	}
}

type (
	callbackResult struct {
		returnTo string
		err      error
	}
	// callbackServer receives the redirect of the identity provider on the
	// host and path of the configured redirect uri.
	callbackServer struct {
		addr   string
		path   string
		client *idp.Client
		server *http.Server
		result chan callbackResult
		log    *log.Logger
	}
)

func newCallbackServer(redirectURI string, client *idp.Client) (*callbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("redirect uri %s must use http for a local login", redirectURI)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "80")
	}
	return &callbackServer{
		addr:   host,
		path:   u.Path,
		client: client,
		result: make(chan callbackResult, 1),
		log:    log.Default().Named("login"),
	}, nil
}

func (s *callbackServer) start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("callback server stopped", log.ErrorField(err))
		}
	}()
	s.log.Debug("callback server started", log.String("addr", l.Addr().String()))
	return nil
}

func (s *callbackServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Warn("callback server shutdown", log.ErrorField(err))
	}
}

func (s *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if idpErr := q.Get("error"); idpErr != "" {
		s.log.Warn("identity provider returned error",
			log.String("error", idpErr),
			log.String("description", q.Get("error_description")))
		http.Error(w, "login failed: "+idpErr, http.StatusBadRequest)
		s.send(callbackResult{err: errors.New(idpErr)})
		return
	}
	target, err := s.client.HandleCallback(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		http.Error(w, "login failed", http.StatusBadRequest)
		s.send(callbackResult{err: err})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "Login successful. You may close this window.\n")
	s.send(callbackResult{returnTo: target})
}

func (s *callbackServer) send(res callbackResult) {
	select {
	case s.result <- res:
	default:
	}
}
