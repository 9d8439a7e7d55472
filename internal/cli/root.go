// Package cli implements the redcart command: checkout actions run in
// process against the commerce API, plus event and store maintenance.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/032-extremist/redcart-checkout/internal/app"
	"github.com/032-extremist/redcart-checkout/internal/config"
	"github.com/032-extremist/redcart-checkout/internal/domain"
	pkgconfig "github.com/032-extremist/redcart-checkout/pkg/config"
	"github.com/032-extremist/redcart-checkout/pkg/logger"
	"github.com/032-extremist/redcart-checkout/pkg/middleware"
)

// CheckoutService is the set of checkout actions the CLI drives.
type CheckoutService interface {
	State(ctx context.Context) (*domain.OrchestrationState, error)
	Submit(ctx context.Context, form domain.CheckoutForm) (*domain.OrchestrationState, error)
	RetryPush(ctx context.Context) (*domain.OrchestrationState, error)
	CheckStatus(ctx context.Context) (*domain.OrchestrationState, error)
	Reset(ctx context.Context) (*domain.OrchestrationState, error)
	Orders(ctx context.Context) ([]domain.Order, error)
	OrderStatus(ctx context.Context, orderID string) (*domain.OrderStatusView, error)
}

// Runtime is what a command needs once configuration is loaded.
type Runtime struct {
	Service CheckoutService
	Purge   func(ctx context.Context) (int64, error)
	Close   func() error
}

// Opener builds a Runtime. Tests replace it to avoid real connections.
type Opener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error)

// OpenRuntime connects the configured store, commerce client and producer.
func OpenRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	deps, err := app.NewDeps(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		Service: deps.Service,
		Purge:   deps.PurgeExpired,
		Close:   deps.Close,
	}, nil
}

type options struct {
	token   string
	csrf    string
	store   string
	jsonOut bool
	verbose bool

	open Opener
	in   io.Reader

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the redcart command tree.
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(&options{open: OpenRuntime, in: os.Stdin}, version)
}

func newRootCommand(opts *options, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "redcart",
		Short: "Drive a redcart checkout from the terminal",
		Long: `redcart places orders against the commerce API and walks a mobile-money
payment through prompt, retry and status checks.

Credentials come from REDCART_TOKEN and REDCART_CSRF_TOKEN or the flags below.
State is kept in the store named by STATE_STORE, so separate invocations share
one checkout when a redis or postgres store is configured.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&opts.token, "token", "", "Bearer token (default $REDCART_TOKEN)")
	root.PersistentFlags().StringVar(&opts.csrf, "csrf", "", "Anti-forgery token (default $REDCART_CSRF_TOKEN)")
	root.PersistentFlags().StringVar(&opts.store, "store", "", "State store: memory, redis or postgres (default $STATE_STORE)")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print JSON instead of text")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newStateCmd(opts))
	root.AddCommand(newSubmitCmd(opts))
	root.AddCommand(newRetryCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newResetCmd(opts))
	root.AddCommand(newCheckoutCmd(opts))
	root.AddCommand(newOrdersCmd(opts))
	root.AddCommand(newEventsCmd(opts))
	root.AddCommand(newPurgeCmd(opts))
	return root
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// load reads the environment, applies flag overrides and prepares the
// command context with credentials and a correlation ID.
func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.Load(pkgconfig.WithOverrides(map[string]string{"STATE_STORE": o.store}))
	if err != nil {
		return err
	}
	if o.token == "" {
		o.token = cfg.Token
	}
	if o.csrf == "" {
		o.csrf = cfg.CSRFToken
	}
	o.cfg = cfg

	level := "warn"
	if o.verbose {
		level = "debug"
	}
	o.logger = logger.NewWithOptions("redcart-cli", logger.Options{
		Level:  level,
		Format: "text",
		Writer: cmd.ErrOrStderr(),
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.WithCredentials(ctx, middleware.Credentials{Token: o.token, CSRF: o.csrf})
	ctx = logger.WithCorrelationID(ctx, uuid.NewString())
	cmd.SetContext(ctx)
	return nil
}

// withRuntime opens a Runtime for one command and closes it afterwards.
func (o *options) withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *Runtime) error) (err error) {
	ctx := cmd.Context()
	rt, err := o.open(ctx, o.cfg, o.logger)
	if err != nil {
		return err
	}
	defer func() {
		if rt.Close == nil {
			return
		}
		if cerr := rt.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, rt)
}
