package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	pkgviper "github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/zinrai/l2network-mvp-go/internal/config"
	"github.com/zinrai/l2network-mvp-go/internal/domain"
	"github.com/zinrai/l2network-mvp-go/internal/infrastructure/db"
	"github.com/zinrai/l2network-mvp-go/internal/infrastructure/memstore"
	"github.com/zinrai/l2network-mvp-go/internal/infrastructure/persistence"
	"github.com/zinrai/l2network-mvp-go/internal/interface/api"
	"github.com/zinrai/l2network-mvp-go/internal/logger"
	"github.com/zinrai/l2network-mvp-go/internal/metrics"
	"github.com/zinrai/l2network-mvp-go/internal/nsx/securitygroup"
	"github.com/zinrai/l2network-mvp-go/internal/nsx/vcns"
	"github.com/zinrai/l2network-mvp-go/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

func serveFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("serve", pflag.ExitOnError)
	fs.String(listenFlagName, "", "Listening address, overrides the configuration file")
	fs.String(databaseDriverKey, "", "Datastore: postgres or memory")
	return fs
}

func serveCommand(ctx context.Context, v *pkgviper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(ctx, cmd, v)
		},
	}
	cmd.Flags().AddFlagSet(serveFlags())
	return cmd
}

func openRepository(ctx context.Context, cfg *config.Config) (domain.L2NetworkRepository, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.G(ctx).Warn("Using the in-memory datastore, state is lost on exit")
		store, err := memstore.New()
		return store, func() {}, err
	}

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	needsMigration, err := conn.NeedsMigration(ctx)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if needsMigration {
		conn.Close()
		return nil, nil, errors.New("cannot start up, database migrations need to be run")
	}
	return persistence.NewL2NetworkRepository(conn), func() { conn.Close() }, nil
}

func runServe(ctx context.Context, cmd *cobra.Command, v *pkgviper.Viper) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	uc := usecase.NewL2NetworkUseCase(repo)
	if err := uc.InitializeVlanPool(ctx, cfg.Vlan.Start, cfg.Vlan.End); err != nil {
		return errors.Wrap(err, "could not initialize VLAN pool")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	if err := metrics.Register(registry); err != nil {
		return err
	}

	var sg *usecase.SecurityGroupUseCase
	var scheduler *securitygroup.Scheduler
	if cfg.NSX.URL != "" {
		client, err := vcns.NewClient(cfg.NSX, &http.Client{})
		if err != nil {
			return err
		}
		scheduler = securitygroup.NewScheduler(ctx, client,
			securitygroup.WithRetryInterval(cfg.NSX.RetryInterval),
			securitygroup.WithMaxAttempts(cfg.NSX.MaxAttempts),
			securitygroup.WithObserver(usecase.RecordMemberTask),
		)
		sg = usecase.NewSecurityGroupUseCase(scheduler)
	} else {
		logger.G(ctx).Info("No NSX manager configured, security group membership is disabled")
	}

	handler := api.NewL2NetworkHandler(uc, sg, registry)
	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return errors.Wrap(err, "could not setup listener")
	}
	logger.G(ctx).WithField("address", listener.Addr().String()).Info("Listening")

	server := &http.Server{
		Handler:     handler.Router(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.Serve(listener); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	err = group.Wait()
	if scheduler != nil {
		scheduler.Wait()
	}
	return err
}
