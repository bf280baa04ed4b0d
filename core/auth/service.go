package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/student"
)

// user types
const (
	UserAdmin     = "admin"
	UserSecretary = "secretary"
	UserSCO       = "sco"
	UserLeader    = "leader"
	UserStudent   = "student"
)

var (
	StaffRoles = []string{UserAdmin, UserSecretary, UserSCO}

	ErrNotFound = errors.New("auth state not found")
)

// State is the current login of the portal.
type State struct {
	IsAuthenticated bool             `json:"isAuthenticated"`
	UserType        string           `json:"userType,omitempty"`
	CurrentStudent  *student.Student `json:"currentStudent,omitempty"`
	LoggedInAt      time.Time        `json:"loggedInAt,omitempty"`
}

// IsStaff reports whether the logged in user is a staff member.
func (s State) IsStaff() bool {
	return s.IsAuthenticated && core.Contains(StaffRoles, s.UserType)
}

type (
	Repository interface {
		GetAuthState(ctx context.Context) (State, error)
		SaveAuthState(ctx context.Context, s State) (State, error)
	}

	Service struct {
		authn    Authenticator
		students *student.Service
		repo     Repository
	}
)

func NewService(authn Authenticator, students *student.Service, repo Repository) *Service {
	return &Service{authn: authn, students: students, repo: repo}
}

func (svc *Service) LoginStaff(ctx context.Context, role, password string) (State, error) {
	role = core.CleanString(role, true)
	if !core.Contains(StaffRoles, role) {
		return State{}, ErrInvalidCredentials
	}
	if err := svc.authn.Authenticate(role, password); err != nil {
		return State{}, err
	}
	return svc.repo.SaveAuthState(ctx, State{
		IsAuthenticated: true,
		UserType:        role,
		LoggedInAt:      core.NowFunc(),
	})
}

// LoginStudent logs a student in with their email and registration number.
// Session leaders get the leader portal.
func (svc *Service) LoginStudent(ctx context.Context, email, regNumber string) (State, error) {
	s, err := svc.students.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return State{}, ErrInvalidCredentials
		}
		return State{}, errors.Wrap(err, "finding student by email")
	}
	if s.RegistrationNumber != core.CleanString(regNumber) {
		return State{}, ErrInvalidCredentials
	}

	userType := UserStudent
	if s.IsLeader {
		userType = UserLeader
	}
	snapshot := s.Public()
	return svc.repo.SaveAuthState(ctx, State{
		IsAuthenticated: true,
		UserType:        userType,
		CurrentStudent:  &snapshot,
		LoggedInAt:      core.NowFunc(),
	})
}

func (svc *Service) Logout(ctx context.Context) error {
	_, err := svc.repo.SaveAuthState(ctx, State{})
	return err
}

// Current returns the persisted login, logged out if none.
func (svc *Service) Current(ctx context.Context) (State, error) {
	s, err := svc.repo.GetAuthState(ctx)
	if errors.Cause(err) == ErrNotFound {
		return State{}, nil
	}
	return s, err
}
