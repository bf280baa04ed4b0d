package statedb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/settings"
	"github.com/trezcool/academia/core/staff"
)

type (
	settingsRepository struct {
		v *Value[settings.SiteSettings]
	}

	authRepository struct {
		v *Value[auth.State]
	}

	staffRepository struct {
		c *Collection[staff.Profile]
	}
)

var (
	_ settings.Repository = (*settingsRepository)(nil)
	_ auth.Repository     = (*authRepository)(nil)
	_ staff.Repository    = (*staffRepository)(nil)
)

func NewSettingsRepository(db *DB) settings.Repository {
	return &settingsRepository{v: db.Settings}
}

func (repo *settingsRepository) GetSettings(context.Context) (settings.SiteSettings, error) {
	if s, ok := repo.v.Get(); ok {
		return s, nil
	}
	return settings.SiteSettings{}, settings.ErrNotFound
}

func (repo *settingsRepository) SaveSettings(ctx context.Context, s settings.SiteSettings) (settings.SiteSettings, error) {
	if err := repo.v.Set(ctx, s); err != nil {
		return settings.SiteSettings{}, err
	}
	return s, nil
}

func NewAuthRepository(db *DB) auth.Repository {
	return &authRepository{v: db.Auth}
}

func (repo *authRepository) GetAuthState(context.Context) (auth.State, error) {
	if s, ok := repo.v.Get(); ok {
		return s, nil
	}
	return auth.State{}, auth.ErrNotFound
}

func (repo *authRepository) SaveAuthState(ctx context.Context, s auth.State) (auth.State, error) {
	if err := repo.v.Set(ctx, s); err != nil {
		return auth.State{}, err
	}
	return s, nil
}

func NewStaffRepository(db *DB) staff.Repository {
	return &staffRepository{c: db.StaffProfiles}
}

// QueryProfiles returns the profiles in staff.Roles order.
func (repo *staffRepository) QueryProfiles(context.Context) ([]staff.Profile, error) {
	profiles := repo.c.All()
	rank := func(role string) int {
		for i, r := range staff.Roles {
			if r == role {
				return i
			}
		}
		return len(staff.Roles)
	}
	sort.SliceStable(profiles, func(i, j int) bool { return rank(profiles[i].Role) < rank(profiles[j].Role) })
	return profiles, nil
}

func (repo *staffRepository) GetProfile(_ context.Context, role string) (staff.Profile, error) {
	if p, ok := repo.c.Get(role); ok {
		return p, nil
	}
	return staff.Profile{}, staff.ErrNotFound
}

func (repo *staffRepository) SaveProfile(ctx context.Context, p staff.Profile) (staff.Profile, error) {
	if err := repo.c.Put(ctx, p); err != nil {
		return staff.Profile{}, err
	}
	return p, nil
}
