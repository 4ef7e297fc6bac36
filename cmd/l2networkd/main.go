package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	pkgviper "github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/zinrai/l2network-mvp-go/internal/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logrusLogger := logrus.StandardLogger()
	ctx = logger.WithLogger(ctx, logrusLogger)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, unix.SIGTERM, unix.SIGINT)
		sig := <-c
		logrus.WithField("signal", sig.String()).Info("Terminating with signal")
		cancel()
	}()

	v := pkgviper.New()
	rootCmd := &cobra.Command{
		Use:          "l2networkd",
		Short:        "VLAN allocator and security group membership service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if v.GetBool("debug") {
				logrus.SetLevel(logrus.DebugLevel)
				logrusLogger.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(ctx, cmd, v)
		},
	}
	rootCmd.Flags().AddFlagSet(serveFlags())
	rootCmd.PersistentFlags().Bool("debug", false, "Turn on debug logging")
	rootCmd.PersistentFlags().StringP(configFlagName, "c", "", "Path to the YAML configuration file")
	rootCmd.AddCommand(serveCommand(ctx, v))
	rootCmd.AddCommand(migrateCommand(ctx, v))

	if err := v.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		logger.G(ctx).WithError(err).Fatal("Unable to configure Viper")
	}
	bindEnvironment(v)

	err := rootCmd.Execute()
	if ctx.Err() != nil {
		logger.G(ctx).Info("Shutting down gracefully")
	} else if err != nil {
		logger.G(ctx).WithError(err).Fatal("Failed")
	}
}
