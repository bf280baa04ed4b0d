package staff

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var ErrNotFound = errors.New("staff profile not found")

// staff roles
const (
	RoleAdmin     = "admin"
	RoleSecretary = "secretary"
	RoleSCO       = "sco"
)

var Roles = []string{RoleAdmin, RoleSecretary, RoleSCO}

// Profile is the public profile of a staff role; there is at most one per role.
type Profile struct {
	Role      string    `json:"role" validate:"required,oneof=admin secretary sco"`
	Name      string    `json:"name" validate:"required"`
	Email     string    `json:"email" validate:"omitempty,email"`
	Phone     string    `json:"phone" validate:"omitempty,phone"`
	Bio       string    `json:"bio,omitempty"`
	Picture   string    `json:"picture,omitempty" validate:"omitempty,dataurl"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p Profile) GetID() string { return p.Role }

type (
	Repository interface {
		QueryProfiles(ctx context.Context) ([]Profile, error)
		GetProfile(ctx context.Context, role string) (Profile, error)
		SaveProfile(ctx context.Context, p Profile) (Profile, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) All(ctx context.Context) ([]Profile, error) {
	return svc.repo.QueryProfiles(ctx)
}

func (svc *Service) Get(ctx context.Context, role string) (Profile, error) {
	return svc.repo.GetProfile(ctx, core.CleanString(role, true))
}

// Upsert creates or replaces the profile of p.Role.
func (svc *Service) Upsert(ctx context.Context, p Profile) (Profile, error) {
	p.Role = core.CleanString(p.Role, true)
	p.Name = core.CleanString(p.Name)
	p.Email = core.CleanString(p.Email, true)
	if err := svc.validate.Struct(p); err != nil {
		return Profile{}, err
	}
	p.UpdatedAt = core.NowFunc()
	return svc.repo.SaveProfile(ctx, p)
}
