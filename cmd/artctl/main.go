package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"artmarket/internal/client"
	"artmarket/internal/config"
	"artmarket/internal/routing"
	"artmarket/internal/session"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app agrupa el cliente y el store de sesión de una ejecución de artctl.
type app struct {
	cfg    *config.ClientConfig
	logger *zap.Logger
	client *client.Client
	store  *session.Store
	out    io.Writer
	in     *bufio.Reader
}

var (
	current *app
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "artctl",
	Short:         "Command line client for the art marketplace API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		a, err := newApp(cmd.OutOrStdout(), cmd.InOrStdin())
		if err != nil {
			return err
		}
		current = a
		a.store.Start(cmd.Context())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			current.store.Close()
			_ = current.logger.Sync()
		}
	},
}

func newApp(out io.Writer, in io.Reader) (*app, error) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
	}

	path := cfg.SessionFile
	if path == "" {
		path, err = client.DefaultSessionFile()
		if err != nil {
			return nil, fmt.Errorf("resolve session file: %w", err)
		}
	}

	api := client.New(cfg.APIURL, cfg.Timeout, client.NewFileTokenStore(path), logger)
	nav := routing.NavigatorFunc(func(target string, _ bool) {
		fmt.Fprintf(out, "-> %s\n", target)
	})
	policy := session.RetryPolicy{
		MaxAttempts:  cfg.ProfileRetryAttempts,
		InitialDelay: cfg.ProfileRetryInitialDelay,
		Multiplier:   2,
		MaxDelay:     cfg.ProfileRetryMaxDelay,
	}
	fetcher := session.NewProfileFetcher(logger, api, policy, nil)
	store := session.NewStore(logger, api, api, fetcher, nav, session.Options{SettleDelay: cfg.SettleDelay})

	return &app{
		cfg:    cfg,
		logger: logger,
		client: api,
		store:  store,
		out:    out,
		in:     bufio.NewReader(in),
	}, nil
}

// ready espera a que el store termine de resolver la sesión guardada.
func (a *app) ready(ctx context.Context) error {
	_, err := a.store.WaitReady(ctx)
	return err
}

func (a *app) prompt(label string) (string, error) {
	fmt.Fprintf(a.out, "%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(signInCmd(), signUpCmd(), signOutCmd(), whoamiCmd(), openCmd(), uploadCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
