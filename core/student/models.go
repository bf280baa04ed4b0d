package student

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusGraduated Status = "graduated"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
)

type Student struct {
	ID                 string        `json:"id"`
	RegistrationNumber string        `json:"registrationNumber"`
	Name               string        `json:"name"`
	Email              string        `json:"email"`
	Phone              string        `json:"phone,omitempty"`
	Program            string        `json:"program,omitempty"`
	SessionIDs         []string      `json:"sessionIds"`
	Status             Status        `json:"status"`
	EmailConfirmed     bool          `json:"emailConfirmed"`
	VerificationCode   string        `json:"verificationCode,omitempty"`
	PaymentStatus      PaymentStatus `json:"paymentStatus"`
	PaymentReceipt     string        `json:"paymentReceipt,omitempty"` // data URL
	IsLeader           bool          `json:"isLeader"`
	Certificate        string        `json:"certificate,omitempty"`    // data URL
	ProfilePicture     string        `json:"profilePicture,omitempty"` // data URL
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

func (s Student) GetID() string { return s.ID }

func (s Student) HasSession(id string) bool {
	return core.Contains(s.SessionIDs, id)
}

// CertificateAvailable reports whether the Student may download their certificate.
func (s Student) CertificateAvailable() bool {
	return s.Status == StatusGraduated && s.PaymentStatus == PaymentApproved && s.Certificate != ""
}

// Public returns a copy of the Student without secrets, for portals other than staff's.
func (s Student) Public() Student {
	s.VerificationCode = ""
	if !s.CertificateAvailable() {
		s.Certificate = ""
	}
	return s
}

// NewRegistration contains information needed to register a Student to a session.
type NewRegistration struct {
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone" validate:"omitempty,phone"`
	Program        string `json:"program"`
	SessionID      string `json:"sessionId" validate:"required"`
	ProfilePicture string `json:"profilePicture" validate:"omitempty,dataurl"`
}

func (nr *NewRegistration) Validate(validate *validator.Validate) error {
	nr.Name = core.CleanString(nr.Name)
	nr.Email = core.CleanString(nr.Email, true /* lower */)
	nr.Phone = core.CleanString(nr.Phone)
	nr.Program = core.CleanString(nr.Program)
	nr.SessionID = core.CleanString(nr.SessionID)
	return validate.Struct(nr)
}

// RegistrationResult is the outcome of a registration attempt.
// A failed registration (eg. already registered) is not an error.
type RegistrationResult struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Student Student `json:"student"`
}

// Patch defines what information may be provided to modify an existing Student.
type Patch struct {
	Name           *string `json:"name" validate:"omitempty,min=1"`
	Phone          *string `json:"phone" validate:"omitempty,phone"`
	Program        *string `json:"program"`
	Status         *Status `json:"status" validate:"omitempty,oneof=active inactive graduated"`
	ProfilePicture *string `json:"profilePicture" validate:"omitempty,dataurl"`
	IsLeader       *bool   `json:"isLeader"`
}

func (p *Patch) Validate(validate *validator.Validate) error {
	if p.Name != nil {
		name := core.CleanString(*p.Name)
		p.Name = &name
	}
	return validate.Struct(p)
}

func (p Patch) apply(s *Student) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Phone != nil {
		s.Phone = core.CleanString(*p.Phone)
	}
	if p.Program != nil {
		s.Program = core.CleanString(*p.Program)
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.ProfilePicture != nil {
		s.ProfilePicture = *p.ProfilePicture
	}
	if p.IsLeader != nil {
		s.IsLeader = *p.IsLeader
	}
}

type QueryFilter struct {
	Search        string        `query:"search"`
	SessionID     string        `query:"session"`
	Status        Status        `query:"status"`
	PaymentStatus PaymentStatus `query:"payment"`
	IsLeader      *bool         `query:"leader"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search, true)
}

// Match applies AND operation on available QueryFilter fields.
// QueryFilter.Search does a case-insensitive match on one of Name, Email or RegistrationNumber.
func (qf *QueryFilter) Match(s Student) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" &&
		!strings.Contains(strings.ToLower(s.Name), qf.Search) &&
		!strings.Contains(s.Email, qf.Search) &&
		!strings.Contains(strings.ToLower(s.RegistrationNumber), qf.Search) {
		return false
	}
	if qf.SessionID != "" && !s.HasSession(qf.SessionID) {
		return false
	}
	if qf.Status != "" && s.Status != qf.Status {
		return false
	}
	if qf.PaymentStatus != "" && s.PaymentStatus != qf.PaymentStatus {
		return false
	}
	if qf.IsLeader != nil && s.IsLeader != *qf.IsLeader {
		return false
	}
	return true
}

// GetFilter finds a single Student by the first non-empty field.
type GetFilter struct {
	ID                 string
	Email              string
	RegistrationNumber string
}
