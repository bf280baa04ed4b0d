package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/editor"
	"github.com/trezcool/academia/core/material"
	"github.com/trezcool/academia/core/message"
	"github.com/trezcool/academia/core/session"
	"github.com/trezcool/academia/core/settings"
	"github.com/trezcool/academia/core/staff"
	"github.com/trezcool/academia/core/student"
	statedb "github.com/trezcool/academia/storage/database/state"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		DisableReqLogs bool

		DB         *statedb.DB
		Validate   *validator.Validate
		Translator ut.Translator

		AuthSvc     *auth.Service
		StudentSvc  *student.Service
		SessionSvc  *session.Service
		MessageSvc  *message.Service
		MaterialSvc *material.Service
		SettingsSvc *settings.Service
		StaffSvc    *staff.Service
		Editor      *editor.Editor
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		hub      *hub
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		hub:      newHub(deps.Logger),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(newMetricsHandler()))

	v1 := s.app.Group("/v1")
	jwt := jwtMiddleware(conf.SecretKey)

	registerAuthAPI(v1, jwt, s.deps.AuthSvc, conf, s.deps.Validate)
	registerSettingsAPI(v1, jwt, s.deps.SettingsSvc)
	registerSessionAPI(v1, jwt, s.deps.SessionSvc, s.deps.StudentSvc)
	registerStudentAPI(v1, jwt, s.deps.StudentSvc, s.deps.Validate)
	registerStaffAPI(v1, jwt, s.deps.StaffSvc)
	registerMessageAPI(v1, jwt, s.deps.MessageSvc, s.deps.StudentSvc)
	registerMaterialAPI(v1, jwt, s.deps.MaterialSvc, s.deps.StudentSvc)
	registerAdminAPI(v1, jwt, s.deps.Editor, s.deps.DB, s.deps.Logger, s.deps.Validate)
	registerEventsAPI(v1, jwt, s.hub)

	s.deps.DB.OnChange(s.hub.broadcastEvent)
}

func newMetricsHandler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registry.MustRegister(statedb.Collectors()...)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	s.hub.close()
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	signal.Stop(s.shutdown)
	s.hub.close()
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
