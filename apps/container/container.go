// Package container wires the dependencies shared by the apps.
package container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/editor"
	"github.com/trezcool/academia/core/material"
	"github.com/trezcool/academia/core/message"
	"github.com/trezcool/academia/core/session"
	"github.com/trezcool/academia/core/settings"
	"github.com/trezcool/academia/core/staff"
	"github.com/trezcool/academia/core/student"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	statedb "github.com/trezcool/academia/storage/database/state"
	localstore "github.com/trezcool/academia/storage/local"
	"github.com/trezcool/academia/storage/remote"
	pgremote "github.com/trezcool/academia/storage/remote/postgres"
	redisremote "github.com/trezcool/academia/storage/remote/redis"
)

// Container holds the services of an app.
type Container struct {
	Conf       *core.Config
	Logger     core.Logger
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

func NewLogger(conf *core.Config, prefix string) core.Logger {
	stdLogger := log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!(conf.Debug || conf.TestMode))
	return logger
}

func NewEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, log.New(os.Stdout, "MAIL : ", log.LstdFlags), logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// OpenRemote opens the remote backend selected by conf.Storage.Remote (nil if none).
func OpenRemote(ctx context.Context, conf *core.Config, logger core.Logger) (remote.Backend, error) {
	switch conf.Storage.Remote {
	case core.RemoteNone:
		return nil, nil
	case core.RemoteMemory:
		return remote.NewBroker(), nil
	case core.RemotePostgres:
		backend, err := pgremote.Open(ctx, conf.Database, logger)
		if err != nil {
			return nil, err
		}
		if err = pgremote.Migrate(ctx, backend.DB(), "up"); err != nil {
			_ = backend.Close()
			return nil, err
		}
		return backend, nil
	case core.RemoteRedis:
		client := redisremote.NewClient(conf.Redis)
		backend := redisremote.New(client, conf.Redis.Prefix, logger)
		if !backend.Healthy(ctx) {
			logger.Warn(fmt.Sprintf("redis at %s is unreachable, working locally until it is back", conf.Redis.Addr))
		}
		return backend, nil
	}
	return nil, errors.Errorf("unknown remote backend %q", conf.Storage.Remote)
}

// OpenDB opens the state from the local directory, mirrored to the configured remote backend.
func OpenDB(ctx context.Context, conf *core.Config, logger core.Logger) (*statedb.DB, error) {
	local, err := localstore.NewFileStorage(conf.Storage.LocalDir)
	if err != nil {
		return nil, errors.Wrap(err, "opening local storage")
	}
	backend, err := OpenRemote(ctx, conf, logger)
	if err != nil {
		return nil, errors.Wrap(err, "opening remote backend")
	}
	db, err := statedb.Open(ctx, statedb.Options{Local: local, Remote: backend, Logger: logger})
	if err != nil {
		if backend != nil {
			_ = backend.Close()
		}
		return nil, errors.Wrap(err, "opening state")
	}
	return db, nil
}

// New wires the services on db.
func New(conf *core.Config, logger core.Logger, db *statedb.DB, mailSvc core.EmailService) *Container {
	core.InitEmails(conf)
	validate, translator := core.NewValidator()

	sessionSvc := session.NewService(statedb.NewSessionRepository(db), validate)
	studentSvc := student.NewService(statedb.NewStudentRepository(db), statedb.NewSessionRepository(db), mailSvc, validate)
	settingsSvc := settings.NewService(statedb.NewSettingsRepository(db), validate)

	return &Container{
		Conf:        conf,
		Logger:      logger,
		DB:          db,
		Validate:    validate,
		Translator:  translator,
		AuthSvc:     auth.NewService(auth.NewPasswordAuthenticator(conf.Auth.Passwords), studentSvc, statedb.NewAuthRepository(db)),
		StudentSvc:  studentSvc,
		SessionSvc:  sessionSvc,
		MessageSvc:  message.NewService(statedb.NewMessageRepository(db), statedb.NewGroupMessageRepository(db), validate),
		MaterialSvc: material.NewService(statedb.NewMaterialRepository(db), validate),
		SettingsSvc: settingsSvc,
		StaffSvc:    staff.NewService(statedb.NewStaffRepository(db), validate),
		Editor:      editor.New(settingsSvc, sessionSvc, studentSvc, logger),
	}
}
