package settings

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var ErrNotFound = errors.New("site settings not found")

type StaffContact struct {
	Role  string `json:"role" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,phone"`
}

// SiteSettings is the singleton configuration of the public site.
type SiteSettings struct {
	SiteName       string            `json:"siteName"`
	Tagline        string            `json:"tagline"`
	PrimaryColor   string            `json:"primaryColor"`
	SecondaryColor string            `json:"secondaryColor"`
	ContactEmail   string            `json:"contactEmail"`
	ContactPhone   string            `json:"contactPhone"`
	Address        string            `json:"address"`
	Announcement   string            `json:"announcement"`
	Features       []string          `json:"features"`
	SocialLinks    map[string]string `json:"socialLinks"`
	StaffContacts  []StaffContact    `json:"staffContacts"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Default returns the settings of a fresh install.
func Default() SiteSettings {
	return SiteSettings{
		SiteName:       "Academia",
		Tagline:        "Learn. Grow. Lead.",
		PrimaryColor:   "#1e3a8a",
		SecondaryColor: "#f59e0b",
		ContactEmail:   "contact@academia.local",
		Features:       []string{"Expert facilitators", "Certificates", "Group chat"},
		SocialLinks:    map[string]string{},
		StaffContacts:  []StaffContact{},
	}
}

// Patch defines what information may be provided to modify the SiteSettings.
type Patch struct {
	SiteName       *string           `json:"siteName" validate:"omitempty,min=1"`
	Tagline        *string           `json:"tagline"`
	PrimaryColor   *string           `json:"primaryColor" validate:"omitempty,hexcolor_or_name"`
	SecondaryColor *string           `json:"secondaryColor" validate:"omitempty,hexcolor_or_name"`
	ContactEmail   *string           `json:"contactEmail" validate:"omitempty,email"`
	ContactPhone   *string           `json:"contactPhone" validate:"omitempty,phone"`
	Address        *string           `json:"address"`
	Announcement   *string           `json:"announcement"`
	Features       []string          `json:"features"`
	SocialLinks    map[string]string `json:"socialLinks" validate:"omitempty,dive,keys,required,endkeys,url"`
	StaffContacts  []StaffContact    `json:"staffContacts" validate:"omitempty,dive"`
}

func (p *Patch) Validate(validate *validator.Validate) error {
	for _, s := range []*string{p.SiteName, p.Tagline, p.PrimaryColor, p.SecondaryColor, p.ContactEmail, p.ContactPhone, p.Address, p.Announcement} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(p)
}

func (p Patch) apply(s *SiteSettings) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&s.SiteName, p.SiteName)
	set(&s.Tagline, p.Tagline)
	set(&s.PrimaryColor, p.PrimaryColor)
	set(&s.SecondaryColor, p.SecondaryColor)
	set(&s.ContactEmail, p.ContactEmail)
	set(&s.ContactPhone, p.ContactPhone)
	set(&s.Address, p.Address)
	set(&s.Announcement, p.Announcement)
	if p.Features != nil {
		s.Features = p.Features
	}
	if p.SocialLinks != nil {
		s.SocialLinks = p.SocialLinks
	}
	if p.StaffContacts != nil {
		s.StaffContacts = p.StaffContacts
	}
}

type (
	Repository interface {
		// GetSettings returns the stored settings, or ErrNotFound if none were ever saved.
		GetSettings(ctx context.Context) (SiteSettings, error)
		SaveSettings(ctx context.Context, s SiteSettings) (SiteSettings, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate

		// serializes the read-modify-writes of the settings
		mu sync.Mutex
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

// Get returns the current settings, defaulting to Default().
func (svc *Service) Get(ctx context.Context) (SiteSettings, error) {
	s, err := svc.repo.GetSettings(ctx)
	if errors.Cause(err) == ErrNotFound {
		return Default(), nil
	}
	return s, err
}

func (svc *Service) Update(ctx context.Context, p Patch) (SiteSettings, error) {
	if err := p.Validate(svc.validate); err != nil {
		return SiteSettings{}, err
	}
	return svc.update(ctx, p.apply)
}

func (svc *Service) update(ctx context.Context, fn func(*SiteSettings)) (SiteSettings, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.Get(ctx)
	if err != nil {
		return SiteSettings{}, err
	}
	fn(&s)
	s.UpdatedAt = core.NowFunc()
	return svc.repo.SaveSettings(ctx, s)
}

func (svc *Service) SetAnnouncement(ctx context.Context, text string) (SiteSettings, error) {
	text = core.CleanString(text)
	if text == "" {
		return SiteSettings{}, core.NewFieldError("announcement", "this field is required")
	}
	return svc.Update(ctx, Patch{Announcement: &text})
}

func (svc *Service) ClearAnnouncement(ctx context.Context) (SiteSettings, error) {
	empty := ""
	return svc.Update(ctx, Patch{Announcement: &empty})
}

// AddFeature appends a feature unless an equal one (case-insensitive) is listed.
func (svc *Service) AddFeature(ctx context.Context, feature string) (SiteSettings, error) {
	feature = core.CleanString(feature)
	if feature == "" {
		return SiteSettings{}, core.NewFieldError("feature", "this field is required")
	}
	return svc.update(ctx, func(s *SiteSettings) {
		if indexFold(s.Features, feature) < 0 {
			s.Features = append(s.Features, feature)
		}
	})
}

// RemoveFeature removes a feature (case-insensitive), returning false if it was not listed.
func (svc *Service) RemoveFeature(ctx context.Context, feature string) (SiteSettings, bool, error) {
	feature = core.CleanString(feature)
	var removed bool
	s, err := svc.update(ctx, func(s *SiteSettings) {
		if i := indexFold(s.Features, feature); i >= 0 {
			s.Features = append(s.Features[:i:i], s.Features[i+1:]...)
			removed = true
		}
	})
	return s, removed, err
}

func (svc *Service) SetSocialLink(ctx context.Context, network, url string) (SiteSettings, error) {
	network = core.CleanString(network, true)
	url = core.CleanString(url)
	if network == "" {
		return SiteSettings{}, core.NewFieldError("network", "this field is required")
	}
	if err := svc.validate.Var(url, "required,url"); err != nil {
		return SiteSettings{}, core.NewFieldError("url", "url must be a valid URL")
	}
	return svc.update(ctx, func(s *SiteSettings) {
		links := make(map[string]string, len(s.SocialLinks)+1)
		for k, v := range s.SocialLinks {
			links[k] = v
		}
		links[network] = url
		s.SocialLinks = links
	})
}

func indexFold(s []string, v string) int {
	for i, x := range s {
		if strings.EqualFold(x, v) {
			return i
		}
	}
	return -1
}
