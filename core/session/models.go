package session

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// Status is the lifecycle status of a Session.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
)

// RegistrationStatus is independent from Status: nothing enforces a relationship between them.
type RegistrationStatus string

const (
	RegistrationOpen     RegistrationStatus = "open"
	RegistrationClosed   RegistrationStatus = "closed"
	RegistrationUpcoming RegistrationStatus = "upcoming"
	RegistrationOngoing  RegistrationStatus = "ongoing"
)

const DateLayout = "2006-01-02"

var (
	Statuses             = []Status{StatusUpcoming, StatusOngoing, StatusCompleted}
	RegistrationStatuses = []RegistrationStatus{RegistrationOpen, RegistrationClosed, RegistrationUpcoming, RegistrationOngoing}
)

func ParseStatus(s string) (Status, bool) {
	s = core.CleanString(s, true)
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func ParseRegistrationStatus(s string) (RegistrationStatus, bool) {
	s = core.CleanString(s, true)
	for _, st := range RegistrationStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

type Facilitator struct {
	Name    string `json:"name" validate:"required"`
	Title   string `json:"title,omitempty"`
	Bio     string `json:"bio,omitempty"`
	Picture string `json:"picture,omitempty" validate:"omitempty,dataurl"`
}

type Session struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Description        string             `json:"description,omitempty"`
	StartDate          string             `json:"startDate,omitempty"`
	EndDate            string             `json:"endDate,omitempty"`
	Status             Status             `json:"status"`
	RegistrationStatus RegistrationStatus `json:"registrationStatus"`
	Price              string             `json:"price,omitempty"` // free-form, eg. "50,000 FCFA" or "Free"
	Facilitators       []Facilitator      `json:"facilitators"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

func (s Session) GetID() string { return s.ID }

// AcceptsRegistrations reports whether students may still register to the Session.
func (s Session) AcceptsRegistrations() bool {
	return s.RegistrationStatus != RegistrationClosed
}

// NewSession contains information needed to create a new Session.
type NewSession struct {
	Name               string             `json:"name" validate:"required"`
	Description        string             `json:"description"`
	StartDate          string             `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate            string             `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Status             Status             `json:"status" validate:"omitempty,oneof=upcoming ongoing completed"`
	RegistrationStatus RegistrationStatus `json:"registrationStatus" validate:"omitempty,oneof=open closed upcoming ongoing"`
	Price              string             `json:"price"`
	Facilitators       []Facilitator      `json:"facilitators" validate:"dive"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Price = core.CleanString(ns.Price)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	return checkDateRange(ns.StartDate, ns.EndDate)
}

// Patch defines what information may be provided to modify an existing Session.
type Patch struct {
	Name               *string             `json:"name" validate:"omitempty,min=1"`
	Description        *string             `json:"description"`
	StartDate          *string             `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate            *string             `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Status             *Status             `json:"status" validate:"omitempty,oneof=upcoming ongoing completed"`
	RegistrationStatus *RegistrationStatus `json:"registrationStatus" validate:"omitempty,oneof=open closed upcoming ongoing"`
	Price              *string             `json:"price"`
	Facilitators       []Facilitator       `json:"facilitators" validate:"omitempty,dive"`
}

func (p *Patch) Validate(validate *validator.Validate) error {
	if p.Name != nil {
		name := core.CleanString(*p.Name)
		p.Name = &name
	}
	return validate.Struct(p)
}

// apply sets the provided fields on `s`.
func (p Patch) apply(s *Session) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.StartDate != nil {
		s.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		s.EndDate = *p.EndDate
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.RegistrationStatus != nil {
		s.RegistrationStatus = *p.RegistrationStatus
	}
	if p.Price != nil {
		s.Price = core.CleanString(*p.Price)
	}
	if p.Facilitators != nil {
		s.Facilitators = p.Facilitators
	}
}

type QueryFilter struct {
	Search             string             `query:"search"`
	Status             Status             `query:"status"`
	RegistrationStatus RegistrationStatus `query:"registration_status"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search, true)
}

// Match reports whether `s` satisfies every set field of the filter.
func (qf *QueryFilter) Match(s Session) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" && !strings.Contains(strings.ToLower(s.Name), qf.Search) {
		return false
	}
	if qf.Status != "" && s.Status != qf.Status {
		return false
	}
	if qf.RegistrationStatus != "" && s.RegistrationStatus != qf.RegistrationStatus {
		return false
	}
	return true
}

func checkDateRange(start, end string) error {
	if start == "" || end == "" {
		return nil
	}
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return core.NewFieldError("startDate", "invalid date")
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return core.NewFieldError("endDate", "invalid date")
	}
	if e.Before(s) {
		return core.NewFieldError("endDate", "end date cannot be before start date")
	}
	return nil
}
