package student

import (
	"context"
	"fmt"
	"math/rand"
	"net/mail"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/session"
)

var (
	// errors
	ErrNotFound          = errors.New("student not found")
	ErrCertificateLocked = errors.New("certificate not available yet")

	RandIntn = rand.Intn // mockable

	regNumberAttempts = 5
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, s Student) (Student, error)
		// QueryStudents returns the Students matching filter (all of them if nil).
		QueryStudents(ctx context.Context, filter *QueryFilter) ([]Student, error)
		GetStudent(ctx context.Context, filter GetFilter) (Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids ...string) (int, error)
	}

	Service struct {
		repo     Repository
		sessions session.Repository
		mailSvc  core.EmailService
		validate *validator.Validate

		// serializes the read-modify-writes of Students
		mu sync.Mutex
	}
)

func NewService(repo Repository, sessions session.Repository, mailSvc core.EmailService, validate *validator.Validate) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		mailSvc:  mailSvc,
		validate: validate,
	}
}

// Register registers a Student to a session.
//   - an email already registered to the session is refused, with the existing registration number,
//     even once registrations are closed.
//   - an email already registered to other sessions gets the new session added.
//   - otherwise a new Student is created and a verification code is emailed.
func (svc *Service) Register(ctx context.Context, nr NewRegistration) (RegistrationResult, error) {
	if err := nr.Validate(svc.validate); err != nil {
		return RegistrationResult{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	sess, err := svc.sessions.GetSession(ctx, nr.SessionID)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return RegistrationResult{}, core.NewFieldError("sessionId", "session not found")
		}
		return RegistrationResult{}, errors.Wrap(err, "finding session")
	}

	existing, err := svc.repo.GetStudent(ctx, GetFilter{Email: nr.Email})
	if err == nil && existing.HasSession(sess.ID) {
		return RegistrationResult{
			Success: false,
			Message: fmt.Sprintf(
				"%s is already registered to %s. Your registration number is %s.",
				existing.Email, sess.Name, existing.RegistrationNumber),
			Student: existing.Public(),
		}, nil
	}
	if !sess.AcceptsRegistrations() {
		return RegistrationResult{}, core.NewFieldError("sessionId", "registrations are closed for this session")
	}

	switch {
	case err == nil:
		existing.SessionIDs = core.AppendUnique(existing.SessionIDs, sess.ID)
		existing.UpdatedAt = core.NowFunc()
		updated, err := svc.repo.UpdateStudent(ctx, existing)
		if err != nil {
			return RegistrationResult{}, errors.Wrap(err, "adding session to student")
		}
		return RegistrationResult{
			Success: true,
			Message: fmt.Sprintf(
				"Registered to %s. Your registration number is still %s.", sess.Name, updated.RegistrationNumber),
			Student: updated.Public(),
		}, nil
	case errors.Cause(err) != ErrNotFound:
		return RegistrationResult{}, errors.Wrap(err, "finding student by email")
	}

	regNumber, err := svc.newRegistrationNumber(ctx)
	if err != nil {
		return RegistrationResult{}, err
	}
	now := core.NowFunc()
	s := Student{
		ID:                 core.NewID(),
		RegistrationNumber: regNumber,
		Name:               nr.Name,
		Email:              nr.Email,
		Phone:              nr.Phone,
		Program:            nr.Program,
		SessionIDs:         []string{sess.ID},
		Status:             StatusActive,
		VerificationCode:   newVerificationCode(),
		PaymentStatus:      PaymentPending,
		ProfilePicture:     nr.ProfilePicture,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if s.Program == "" {
		s.Program = sess.Name
	}
	s, err = svc.repo.CreateStudent(ctx, s)
	if err != nil {
		return RegistrationResult{}, errors.Wrap(err, "creating student")
	}
	svc.sendMail(s, "Confirm your email", "verification")

	return RegistrationResult{
		Success: true,
		Message: fmt.Sprintf(
			"Registration successful! Your registration number is %s. A verification code was sent to %s.",
			s.RegistrationNumber, s.Email),
		Student: s.Public(),
	}, nil
}

// newRegistrationNumber generates a random registration number, retrying on observed collisions.
func (svc *Service) newRegistrationNumber(ctx context.Context) (string, error) {
	var regNumber string
	for i := 0; i < regNumberAttempts; i++ {
		regNumber = fmt.Sprintf("ACA-%d-%04d", core.NowFunc().Year(), RandIntn(10000))
		_, err := svc.repo.GetStudent(ctx, GetFilter{RegistrationNumber: regNumber})
		if errors.Cause(err) == ErrNotFound {
			return regNumber, nil
		}
		if err != nil {
			return "", errors.Wrap(err, "checking registration number")
		}
	}
	return regNumber, nil // collisions are tolerated past the last attempt
}

func newVerificationCode() string {
	return fmt.Sprintf("%06d", RandIntn(1000000))
}

func (svc *Service) sendMail(s Student, subject, tmpl string) {
	if svc.mailSvc == nil || s.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: s.Name, Address: s.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: s,
	})
}

func (svc *Service) ConfirmEmail(ctx context.Context, id, code string) (Student, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.repo.GetStudent(ctx, GetFilter{ID: id})
	if err != nil {
		return Student{}, err
	}
	if s.EmailConfirmed {
		return s, nil
	}
	if code = core.CleanString(code); code == "" || code != s.VerificationCode {
		return Student{}, core.NewFieldError("code", "invalid verification code")
	}
	s.EmailConfirmed = true
	s.VerificationCode = ""
	s.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateStudent(ctx, s)
}

// ResendVerification issues a new verification code.
func (svc *Service) ResendVerification(ctx context.Context, id string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.repo.GetStudent(ctx, GetFilter{ID: id})
	if err != nil {
		return err
	}
	if s.EmailConfirmed {
		return nil
	}
	s.VerificationCode = newVerificationCode()
	s.UpdatedAt = core.NowFunc()
	if s, err = svc.repo.UpdateStudent(ctx, s); err != nil {
		return errors.Wrap(err, "updating verification code")
	}
	svc.sendMail(s, "Confirm your email", "verification")
	return nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Student, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryStudents(ctx, filter)
}

// InSession returns the Students registered to the session.
func (svc *Service) InSession(ctx context.Context, sessionID string) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, &QueryFilter{SessionID: sessionID})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) GetByRegistrationNumber(ctx context.Context, regNumber string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{RegistrationNumber: core.CleanString(regNumber)})
}

func (svc *Service) Update(ctx context.Context, id string, p Patch) (Student, error) {
	if err := p.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	return svc.update(ctx, id, p.apply)
}

func (svc *Service) update(ctx context.Context, id string, fn func(*Student)) (Student, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.repo.GetStudent(ctx, GetFilter{ID: id})
	if err != nil {
		return Student{}, err
	}
	fn(&s)
	s.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateStudent(ctx, s)
}

func (svc *Service) SetLeader(ctx context.Context, id string, isLeader bool) (Student, error) {
	return svc.update(ctx, id, func(s *Student) { s.IsLeader = isLeader })
}

func (svc *Service) SetStatus(ctx context.Context, id string, status Status) (Student, error) {
	return svc.Update(ctx, id, Patch{Status: &status})
}

// SubmitPayment attaches a payment receipt and puts the payment back to pending verification.
func (svc *Service) SubmitPayment(ctx context.Context, id, receipt string) (Student, error) {
	if !core.IsDataURL(receipt) {
		return Student{}, core.NewFieldError("receipt", "receipt must be a base64 data URL")
	}
	return svc.update(ctx, id, func(s *Student) {
		s.PaymentReceipt = receipt
		s.PaymentStatus = PaymentPending
	})
}

func (svc *Service) ApprovePayment(ctx context.Context, id string) (Student, error) {
	s, err := svc.update(ctx, id, func(s *Student) { s.PaymentStatus = PaymentApproved })
	if err != nil {
		return Student{}, err
	}
	svc.sendMail(s, "Payment approved", "payment_approved")
	return s, nil
}

func (svc *Service) RejectPayment(ctx context.Context, id string) (Student, error) {
	s, err := svc.update(ctx, id, func(s *Student) { s.PaymentStatus = PaymentRejected })
	if err != nil {
		return Student{}, err
	}
	svc.sendMail(s, "Payment not verified", "payment_rejected")
	return s, nil
}

func (svc *Service) UploadCertificate(ctx context.Context, id, certificate string) (Student, error) {
	if !core.IsDataURL(certificate) {
		return Student{}, core.NewFieldError("certificate", "certificate must be a base64 data URL")
	}
	return svc.update(ctx, id, func(s *Student) { s.Certificate = certificate })
}

// Certificate returns the Student's certificate once unlocked (see Student.CertificateAvailable).
func (svc *Service) Certificate(ctx context.Context, id string) (string, error) {
	s, err := svc.repo.GetStudent(ctx, GetFilter{ID: id})
	if err != nil {
		return "", err
	}
	if !s.CertificateAvailable() {
		return "", ErrCertificateLocked
	}
	return s.Certificate, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteStudentsByID(ctx, ids...)
}
