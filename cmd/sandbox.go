package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/git-timesheets/internal/share"
)

var (
	sandboxListen string
	sandboxToken  string
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Run a local in-memory share server for testing",
	Long: `sandbox serves the share API from memory so 'gts make --share' can be
tried without a real remote store. Point gts at it with share.sandbox=true
or GTS_TEST_MODE=1. Documents expire after their TTL and are lost on exit.`,
	Args: cobra.NoArgs,
	RunE: runSandbox,
}

func init() {
	sandboxCmd.Flags().StringVar(&sandboxListen, "listen", "", "Listen address (default: host of share.sandbox_address)")
	sandboxCmd.Flags().StringVar(&sandboxToken, "token", "", "Required bearer token (default: share.token)")
}

func runSandbox(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger(cmd.ErrOrStderr())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	addr := sandboxListen
	if addr == "" {
		u, err := url.Parse(cfg.Share.SandboxAddress)
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid share.sandbox_address %q", cfg.Share.SandboxAddress)
		}
		addr = u.Host
	}
	token := sandboxToken
	if token == "" {
		token = cfg.Share.Token
	}

	srv := share.NewServer(share.ServerOptions{Token: token, Logger: logger})
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.Sweep()
			}
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Sandbox share server listening on http://%s (Ctrl+C to stop)\n", ln.Addr())
	if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
