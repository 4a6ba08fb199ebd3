// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/tasktrack/internal/auth"
	authpg "github.com/holomush/tasktrack/internal/auth/postgres"
	"github.com/holomush/tasktrack/internal/avatar"
	"github.com/holomush/tasktrack/internal/config"
	"github.com/holomush/tasktrack/internal/httpapi"
	"github.com/holomush/tasktrack/internal/logging"
	"github.com/holomush/tasktrack/internal/notify"
	"github.com/holomush/tasktrack/internal/observability"
	"github.com/holomush/tasktrack/internal/task"
	taskpg "github.com/holomush/tasktrack/internal/task/postgres"
)

const (
	serviceName     = "tasktrack"
	shutdownTimeout = 5 * time.Second
)

type serveOptions struct {
	migrate bool
}

// newServeCmd creates the serve subcommand.
func newServeCmd(root *rootOptions, deps *ServeDeps) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API and, when metrics.addr is set, the metrics and
health endpoints. Runs until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, opts, cmd, deps)
		},
	}

	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply pending migrations before serving")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, opts *serveOptions, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return oops.Wrapf(err, "invalid configuration")
	}

	logger, err := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})
	if err != nil {
		return oops.Wrapf(err, "set up logging")
	}

	logger.Info("starting tasktrack",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"notify_kind", cfg.Notify.Kind,
		"avatar_kind", cfg.Avatar.Kind,
	)

	if opts.migrate {
		if err := migrateUp(deps, cfg.Database.URL); err != nil {
			return err
		}
	}

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL, cfg.Database.ConnectTimeout)
	if err != nil {
		return oops.Wrapf(err, "connect to database")
	}
	defer pool.Close()
	logger.Info("connected to database")

	notifier, closeNotifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	serviceOpts := []auth.ServiceOption{}
	avatars, err := buildAvatarStore(ctx, cfg)
	if err != nil {
		return err
	}
	if avatars != nil {
		serviceOpts = append(serviceOpts, auth.WithAvatarStore(avatars))
	}

	codec, err := auth.NewTokenCodec([]byte(cfg.Auth.SessionSecret))
	if err != nil {
		return err
	}
	users := authpg.NewUserRepository(pool)
	authSvc, err := auth.NewServiceWithLogger(users, auth.NewArgon2idHasher(), codec, notifier, auth.ServiceConfig{
		SessionTTL:    cfg.Auth.SessionTTL,
		ResetTTL:      cfg.Auth.ResetTTL,
		ResetBaseURL:  cfg.Auth.ResetBaseURL,
		DevResetLinks: cfg.Auth.DevResetLinks,
	}, logger, serviceOpts...)
	if err != nil {
		return err
	}
	guard, err := auth.NewGuard(codec, users)
	if err != nil {
		return err
	}
	taskSvc, err := task.NewServiceWithLogger(taskpg.NewTaskRepository(pool), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, pool.Ping, auth.RegisterMetrics)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Wrapf(err, "start observability server")
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		metrics = obsServer.Metrics()
	}

	router, err := httpapi.NewRouter(httpapi.RouterConfig{
		Auth:           authSvc,
		Tasks:          taskSvc,
		Guard:          guard,
		Logger:         logger,
		Metrics:        metrics,
		MaxAvatarBytes: cfg.Avatar.MaxBytes,
	})
	if err != nil {
		stopServers(obsServer, nil)
		return err
	}

	apiServer := deps.APIServerFactory(httpapi.ServerConfig{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, router)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopServers(obsServer, nil)
		return oops.Wrapf(err, "start api server")
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("tasktrack started")
	logger.Info("tasktrack ready", "http_addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	stopServers(obsServer, apiServer)
	logger.Info("shutdown complete")
	return nil
}

// stopServers drains the API first so in-flight requests finish while
// health endpoints still answer.
func stopServers(obs ObservabilityServer, api APIServer) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if api != nil {
		if err := api.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping api server", "error", err)
		}
	}
	if obs != nil {
		if err := obs.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
}

// buildNotifier returns the configured notifier and a function releasing it.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (auth.Notifier, func(), error) {
	noop := func() {}
	switch cfg.Notify.Kind {
	case notify.KindSMTP:
		n, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.Notify.SMTP.Host,
			Port:     cfg.Notify.SMTP.Port,
			Username: cfg.Notify.SMTP.Username,
			Password: cfg.Notify.SMTP.Password,
			From:     cfg.Notify.From,
		})
		if err != nil {
			return nil, noop, err
		}
		return n, noop, nil
	case notify.KindAMQP:
		n, err := notify.DialAMQP(cfg.Notify.AMQP.URL, cfg.Notify.AMQP.Queue)
		if err != nil {
			return nil, noop, err
		}
		return n, func() {
			if err := n.Close(); err != nil {
				logger.Warn("error closing amqp notifier", "error", err)
			}
		}, nil
	default:
		return notify.NewLogNotifier(logger), noop, nil
	}
}

// buildAvatarStore returns nil when uploads are disabled.
func buildAvatarStore(ctx context.Context, cfg *config.Config) (*avatar.Store, error) {
	var backend avatar.Backend
	switch cfg.Avatar.Kind {
	case avatar.KindDisk:
		disk, err := avatar.NewDiskBackend(cfg.Avatar.Dir)
		if err != nil {
			return nil, err
		}
		backend = disk
	case avatar.KindS3:
		s3Backend, err := avatar.NewS3Backend(ctx, avatar.S3Config{
			Bucket:    cfg.Avatar.S3.Bucket,
			Region:    cfg.Avatar.S3.Region,
			Endpoint:  cfg.Avatar.S3.Endpoint,
			AccessKey: cfg.Avatar.S3.AccessKey,
			SecretKey: cfg.Avatar.S3.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		backend = s3Backend
	default:
		return nil, nil
	}
	return avatar.NewStore(backend, cfg.Avatar.MaxBytes)
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when an error arrives, the channel closes, or ctx is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
