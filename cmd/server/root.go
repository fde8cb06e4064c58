package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/userdesk/internal/auth"
	"github.com/sakif/userdesk/internal/config"
	"github.com/sakif/userdesk/internal/server"
)

// envFile is the persistent --env-file flag.
var envFile string

// NewRootCmd creates the root command. Running it without a subcommand
// starts the server.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "userdesk",
		Short: "User directory with session-based authentication",
		Long: `userdesk serves a small user directory behind cookie sessions.
Browsers get HTML forms and redirects; API clients get JSON.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHashPasswordCmd())

	return cmd
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and block until SIGINT or SIGTERM.
In-flight requests get 30 seconds to finish.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if cfg.UsingDevSecret() {
		logger.Warn("SESSION_SECRET not set, using the development secret")
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.Any("error", err))
		return err
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.Any("error", err))
		return err
	}
	return nil
}

// NewHashPasswordCmd creates the hash-password subcommand. It prints a
// bcrypt hash suitable for seeding a store by hand.
func NewHashPasswordCmd() *cobra.Command {
	var (
		password string
		cost     int
	)

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the bcrypt hash of a password",
		Long: `Print the bcrypt hash of a password. The password is read from
--password or, when the flag is absent, from the first line of stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("password") {
				var err error
				password, err = readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}

			hash, err := auth.NewPasswordServiceWithCost(cost).Hash(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "password to hash (visible in shell history; prefer stdin)")
	cmd.Flags().IntVar(&cost, "cost", auth.DefaultCost, "bcrypt cost")

	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password given on stdin")
	}
	return line, nil
}
