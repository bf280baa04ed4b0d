package testutil

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

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
	statedb "github.com/trezcool/academia/storage/database/state"
	localstore "github.com/trezcool/academia/storage/local"
	"github.com/trezcool/academia/storage/remote"
)

// Passwords of the staff roles in tests.
var Passwords = map[string]string{
	auth.UserAdmin:     "admin-pwd",
	auth.UserSecretary: "secretary-pwd",
	auth.UserSCO:       "sco-pwd",
}

type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger records log entries.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

// Entries returns the entries of the given level (all if empty).
func (l *Logger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if level == "" || e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Config returns a configuration for tests.
func Config() *core.Config {
	conf := &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Academia",
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Academia", Address: "noreply@test.local"},
		Auth:             core.AuthConfig{Passwords: Passwords},
	}
	conf.Server.JWTExpirationDelta = time.Hour
	return conf
}

// OpenDB opens a state in memory, mirrored to backend if not nil.
func OpenDB(t *testing.T, local localstore.Storage, backend remote.Backend, logger core.Logger) *statedb.DB {
	t.Helper()
	if local == nil {
		local = localstore.NewMemoryStorage()
	}
	db, err := statedb.Open(context.Background(), statedb.Options{Local: local, Remote: backend, Logger: logger})
	if err != nil {
		t.Fatalf("statedb.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// App bundles the services of a test app.
type App struct {
	Conf       *core.Config
	Log        *Logger
	DB         *statedb.DB
	Mail       *emailsvc.ConsoleServiceMock
	Validate   *validator.Validate
	Translator ut.Translator

	Students  *student.Service
	Sessions  *session.Service
	Messages  *message.Service
	Materials *material.Service
	Settings  *settings.Service
	Staff     *staff.Service
	Auth      *auth.Service
	Editor    *editor.Editor
}

// NewApp wires the services on a local-only state.
func NewApp(t *testing.T) *App {
	t.Helper()
	logger := new(Logger)
	return NewAppWithDB(t, OpenDB(t, nil, nil, logger), logger)
}

func NewAppWithDB(t *testing.T, db *statedb.DB, logger *Logger) *App {
	t.Helper()
	conf := Config()
	validate, translator := core.NewValidator()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	sessions := session.NewService(statedb.NewSessionRepository(db), validate)
	students := student.NewService(statedb.NewStudentRepository(db), statedb.NewSessionRepository(db), mailSvc, validate)
	settingsSvc := settings.NewService(statedb.NewSettingsRepository(db), validate)
	return &App{
		Conf:       conf,
		Log:        logger,
		DB:         db,
		Mail:       mailSvc,
		Validate:   validate,
		Translator: translator,
		Students:   students,
		Sessions:   sessions,
		Messages:   message.NewService(statedb.NewMessageRepository(db), statedb.NewGroupMessageRepository(db), validate),
		Materials:  material.NewService(statedb.NewMaterialRepository(db), validate),
		Settings:   settingsSvc,
		Staff:      staff.NewService(statedb.NewStaffRepository(db), validate),
		Auth: auth.NewService(
			auth.NewPasswordAuthenticator(conf.Auth.Passwords),
			students,
			statedb.NewAuthRepository(db),
		),
		Editor: editor.New(settingsSvc, sessions, students, logger),
	}
}

func CreateSession(t *testing.T, svc *session.Service, name string, regStatus ...session.RegistrationStatus) session.Session {
	t.Helper()
	ns := session.NewSession{Name: name, StartDate: "2024-03-01", EndDate: "2024-03-15", Price: "50,000 FCFA"}
	if len(regStatus) > 0 {
		ns.RegistrationStatus = regStatus[0]
	}
	sess, err := svc.Create(context.Background(), ns)
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return sess
}

func RegisterStudent(t *testing.T, svc *student.Service, name, email, sessionID string) student.Student {
	t.Helper()
	res, err := svc.Register(context.Background(), student.NewRegistration{
		Name:      name,
		Email:     email,
		Phone:     "+237 699 00 00 00",
		SessionID: sessionID,
	})
	if err != nil {
		t.Fatalf("RegisterStudent() failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("RegisterStudent() failed: %s", res.Message)
	}
	return res.Student
}
