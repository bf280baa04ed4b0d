package session

import (
	"context"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound = errors.New("session not found")

	// minimum similarity for FindByName to accept a fuzzy match
	nameMinSim = .6
	// shortest part of a name FindByName matches on its own
	nameMinPart = 3
)

type (
	Repository interface {
		CreateSession(ctx context.Context, s Session) (Session, error)
		// QuerySessions returns the Sessions matching all the set fields of filter (all of them if nil).
		QuerySessions(ctx context.Context, filter *QueryFilter) ([]Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		UpdateSession(ctx context.Context, s Session) (Session, error)
		DeleteSessionsByID(ctx context.Context, ids ...string) (int, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate

		// serializes the read-modify-writes of Sessions
		mu sync.Mutex
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) Create(ctx context.Context, ns NewSession) (Session, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Session{}, err
	}
	now := core.NowFunc()
	s := Session{
		ID:                 core.NewID(),
		Name:               ns.Name,
		Description:        ns.Description,
		StartDate:          ns.StartDate,
		EndDate:            ns.EndDate,
		Status:             ns.Status,
		RegistrationStatus: ns.RegistrationStatus,
		Price:              ns.Price,
		Facilitators:       ns.Facilitators,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if s.Status == "" {
		s.Status = StatusUpcoming
	}
	if s.RegistrationStatus == "" {
		s.RegistrationStatus = RegistrationOpen
	}
	if s.Facilitators == nil {
		s.Facilitators = []Facilitator{}
	}
	return svc.repo.CreateSession(ctx, s)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Session, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QuerySessions(ctx, filter)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

// FindByName returns the Session named `name` (case-insensitive) or, failing that, the most similar one.
func (svc *Service) FindByName(ctx context.Context, name string) (Session, error) {
	name = core.CleanString(strings.Trim(strings.TrimSpace(name), `"'`), true)
	if name == "" {
		return Session{}, ErrNotFound
	}
	sessions, err := svc.repo.QuerySessions(ctx, nil)
	if err != nil {
		return Session{}, errors.Wrap(err, "querying sessions")
	}

	var (
		best      Session
		bestRatio float64
	)
	for _, s := range sessions {
		sName := strings.ToLower(s.Name)
		if sName == name {
			return s, nil
		}
		ratio := difflib.NewMatcher(strings.Split(name, ""), strings.Split(sName, "")).Ratio()
		if containsWords(sName, name) || containsWords(name, sName) {
			ratio = max(ratio, nameMinSim)
		}
		if ratio > bestRatio {
			best, bestRatio = s, ratio
		}
	}
	if bestRatio >= nameMinSim {
		return best, nil
	}
	return Session{}, ErrNotFound
}

// containsWords reports whether part is a run of whole words of s, at least nameMinPart characters long.
func containsWords(s, part string) bool {
	part = strings.Join(strings.Fields(part), " ")
	if len(part) < nameMinPart {
		return false
	}
	return strings.Contains(" "+strings.Join(strings.Fields(s), " ")+" ", " "+part+" ")
}

func (svc *Service) Update(ctx context.Context, id string, p Patch) (Session, error) {
	if err := p.Validate(svc.validate); err != nil {
		return Session{}, err
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	p.apply(&s)
	if err := checkDateRange(s.StartDate, s.EndDate); err != nil {
		return Session{}, err
	}
	s.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateSession(ctx, s)
}

func (svc *Service) Rename(ctx context.Context, id, name string) (Session, error) {
	return svc.Update(ctx, id, Patch{Name: &name})
}

func (svc *Service) SetDates(ctx context.Context, id, start, end string) (Session, error) {
	p := Patch{}
	if start != "" {
		p.StartDate = &start
	}
	if end != "" {
		p.EndDate = &end
	}
	return svc.Update(ctx, id, p)
}

func (svc *Service) SetPrice(ctx context.Context, id, price string) (Session, error) {
	return svc.Update(ctx, id, Patch{Price: &price})
}

func (svc *Service) SetStatus(ctx context.Context, id string, status Status) (Session, error) {
	return svc.Update(ctx, id, Patch{Status: &status})
}

func (svc *Service) SetRegistrationStatus(ctx context.Context, id string, status RegistrationStatus) (Session, error) {
	return svc.Update(ctx, id, Patch{RegistrationStatus: &status})
}

func (svc *Service) AddFacilitator(ctx context.Context, id string, f Facilitator) (Session, error) {
	f.Name = core.CleanString(f.Name)
	if err := svc.validate.Struct(f); err != nil {
		return Session{}, err
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	s.Facilitators = append(append([]Facilitator{}, s.Facilitators...), f)
	s.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateSession(ctx, s)
}

// RemoveFacilitator removes every facilitator named `name` (case-insensitive).
func (svc *Service) RemoveFacilitator(ctx context.Context, id, name string) (Session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	kept := make([]Facilitator, 0, len(s.Facilitators))
	for _, f := range s.Facilitators {
		if !strings.EqualFold(f.Name, core.CleanString(name)) {
			kept = append(kept, f)
		}
	}
	s.Facilitators = kept
	s.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateSession(ctx, s)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteSessionsByID(ctx, ids...)
}
