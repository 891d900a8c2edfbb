package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-authz"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadSettings(cmd.Context())
		if err != nil {
			return err
		}
		logger := newLogger(st.LogLevel, st.pretty(), "authzd")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := openDB(ctx, st.Database, dbSetup{}, logger.named("persistence"))
		if err != nil {
			return err
		}
		defer db.Close()

		var recorder authz.UsageRecorder
		if st.RedisURL != "" {
			opt, err := redis.ParseURL(st.RedisURL)
			if err != nil {
				return fmt.Errorf("failed to parse Redis URL: %w", err)
			}
			client := redis.NewClient(opt)
			defer client.Close()
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to connect to Redis: %w", err)
			}
			recorder = authz.NewRedisUsageRecorder(client)
			logger.Info("usage counters stored in redis")
		}

		svc, err := newService(db, st, recorder, logger)
		if err != nil {
			return err
		}

		app := svc.app()
		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening on %s", st.Addr)
			errCh <- app.Listen(st.Addr)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadSettings(cmd.Context())
		if err != nil {
			return err
		}
		logger := newLogger(st.LogLevel, st.pretty(), "migrate")

		seed, _ := cmd.Flags().GetBool("seed")
		db, err := openDB(cmd.Context(), st.Database, dbSetup{migrate: true, seed: seed}, logger)
		if err != nil {
			return err
		}
		return db.Close()
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <email>",
	Short: "Issue a bearer token for a stored user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadSettings(cmd.Context())
		if err != nil {
			return err
		}
		if err := st.Auth.Validate(); err != nil {
			return err
		}
		logger := newLogger(st.LogLevel, st.pretty(), "token")

		db, err := openDB(cmd.Context(), st.Database, dbSetup{}, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := authz.NewPrincipalStore(db).FindUser(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("lookup %s: %w", args[0], err)
		}

		tokens, err := authz.NewTokenServiceFromConfig(st.Auth, authz.WithKeyID(st.KeyID))
		if err != nil {
			return err
		}

		ttl, _ := cmd.Flags().GetDuration("ttl")
		var token string
		if ttl > 0 {
			token, err = tokens.GenerateWithTTL(user.ToPrincipal(authz.UsagePeriod(time.Now())), ttl)
		} else {
			token, err = tokens.Generate(user.ToPrincipal(authz.UsagePeriod(time.Now())))
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("seed", false, "insert demo accounts")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime, defaults to the configured token expiration")
}
