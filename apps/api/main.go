package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	echoapi "github.com/trezcool/schoolportal/apps/api/echo"
	"github.com/trezcool/schoolportal/core"
	"github.com/trezcool/schoolportal/core/account"
	"github.com/trezcool/schoolportal/core/credential"
	logsvc "github.com/trezcool/schoolportal/services/logger"
	metricsvc "github.com/trezcool/schoolportal/services/metrics"
	"github.com/trezcool/schoolportal/storage/database"
	"github.com/trezcool/schoolportal/storage/database/sqlite"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.Conf

	// set up loggers
	std := logrus.New()
	std.SetOutput(os.Stdout)
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger := logsvc.NewRollbarLogger(std, conf)

	// set up DBs
	dbs, err := database.OpenAll(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening databases: %v", err), err)
	}
	defer func() {
		if err = dbs.Close(); err != nil {
			logger.Error("failed to close databases", err)
		}
	}()
	if err = dbs.Migrate(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("migrating databases: %v", err), err)
	}

	// set up services
	hashers, err := credential.NewHashers(credential.OptionsFromConfig(conf))
	if err != nil {
		logger.Fatal(fmt.Sprintf("configuring password hashers: %v", err), err)
	}
	metrics := metricsvc.New()

	verifier := credential.NewVerifier(hashers, logger)
	verifier.OnUpgrade = metrics.RecordUpgrade

	accountSvc := account.NewService(sqliterepo.NewAccountRepository(dbs.Credential), verifier, logger)
	accountSvc.OnLogin = func(kind account.Kind, outcome string) {
		metrics.RecordLogin(string(kind), outcome)
	}

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(
		&echoapi.Options{
			Address:        conf.Server.Address,
			Debug:          conf.Debug,
			DisableReqLogs: conf.Server.DisableReqLogs,
			AccountSvc:     accountSvc,
			Wiper:          database.Wiper{School: dbs.School, Credential: dbs.Credential},
			Metrics:        metrics,
			Logger:         logger,
			Shutdown:       func() { shutdown <- syscall.SIGTERM },
		},
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		if err != nil {
			logger.Error(fmt.Sprintf("server error: %v", err), err)
		}

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}
