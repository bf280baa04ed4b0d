package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/apps/container"
	"github.com/trezcool/academia/core"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := container.NewLogger(conf, "API")
	dbLogger := container.NewLogger(conf, "DB")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := container.OpenDB(ctx, conf, dbLogger)
	if err != nil {
		logger.Error(fmt.Sprintf("setting up state: %v", err), err)
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()
	if err = db.Watch(ctx); err != nil {
		dbLogger.Error(fmt.Sprintf("watching remote changes: %v", err), err)
	}

	app := container.New(conf, logger, db, container.NewEmailService(conf, logger))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("remote").Set(conf.Storage.Remote)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			DB:          db,
			Validate:    app.Validate,
			Translator:  app.Translator,
			AuthSvc:     app.AuthSvc,
			StudentSvc:  app.StudentSvc,
			SessionSvc:  app.SessionSvc,
			MessageSvc:  app.MessageSvc,
			MaterialSvc: app.MaterialSvc,
			SettingsSvc: app.SettingsSvc,
			StaffSvc:    app.StaffSvc,
			Editor:      app.Editor,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)
		return err

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				return err
			}
		}
	}
	return nil
}
