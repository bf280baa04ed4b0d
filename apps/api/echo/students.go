package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/student"
)

var errStudentNotFoundInCtx = errors.New("student object not found in echo.Context")

type studentApi struct {
	svc      *student.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *student.Service, validate *validator.Validate) {
	api := studentApi{svc: svc, validate: validate}

	sg := g.Group("/students")

	// un-authed endpoints
	sg.POST("/register", api.register)
	sg.POST("/:id/confirm-email", api.confirmEmail)

	// authed endpoints
	ag := sg.Group("", jwt)
	ag.GET("", api.query, roleMiddleware(staffRoles...))
	ag.DELETE("", api.destroyMultiple, adminMiddleware())

	// detail endpoints
	dg := ag.Group("/:id", ctxStudentOrStaffMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update, roleMiddleware(staffRoles...))
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.POST("/resend-verification", api.resendVerification)
	dg.POST("/payment", api.submitPayment)
	dg.POST("/payment/approve", api.approvePayment, roleMiddleware(managerRoles...))
	dg.POST("/payment/reject", api.rejectPayment, roleMiddleware(managerRoles...))
	dg.GET("/certificate", api.certificate)
	dg.PUT("/certificate", api.uploadCertificate, roleMiddleware(managerRoles...))
	dg.PUT("/leader", api.setLeader, roleMiddleware(auth.UserAdmin, auth.UserSCO))
}

// Handlers

func (api *studentApi) register(ctx echo.Context) error {
	var data student.NewRegistration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRegistration")
	}
	res, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	code := http.StatusCreated
	if !res.Success {
		code = http.StatusOK
	}
	return ctx.JSON(code, res)
}

func (api *studentApi) confirmEmail(ctx echo.Context) error {
	var data ConfirmEmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmEmailRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	s, err := api.svc.ConfirmEmail(ctx.Request().Context(), ctx.Param("id"), data.Code)
	if err != nil {
		return errors.Wrap(err, "confirming email")
	}
	return ctx.JSON(http.StatusOK, s.Public())
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	students, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	s, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	return renderStudent(ctx, http.StatusOK, s)
}

func (api *studentApi) update(ctx echo.Context) error {
	s, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}

	var data student.Patch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student.Patch")
	}
	s, err := api.svc.Update(ctx.Request().Context(), s.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	s, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	if _, err := api.svc.Delete(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	n, err := api.svc.Delete(ctx.Request().Context(), query.IDs...)
	if err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return ctx.JSON(http.StatusOK, DeleteResponse{Deleted: n})
}

func (api *studentApi) resendVerification(ctx echo.Context) error {
	s, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.ResendVerification(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "resending verification")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "A new verification code was sent to " + s.Email + "."})
}

func (api *studentApi) submitPayment(ctx echo.Context) error {
	s, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}

	var data PaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentRequest")
	}
	s, err := api.svc.SubmitPayment(ctx.Request().Context(), s.ID, data.Receipt)
	if err != nil {
		return errors.Wrap(err, "submitting payment")
	}
	return renderStudent(ctx, http.StatusOK, s)
}

func (api *studentApi) approvePayment(ctx echo.Context) error {
	s, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	s, err := api.svc.ApprovePayment(ctx.Request().Context(), s.ID)
	if err != nil {
		return errors.Wrap(err, "approving payment")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) rejectPayment(ctx echo.Context) error {
	s, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	s, err := api.svc.RejectPayment(ctx.Request().Context(), s.ID)
	if err != nil {
		return errors.Wrap(err, "rejecting payment")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) certificate(ctx echo.Context) error {
	s, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	cert, err := api.svc.Certificate(ctx.Request().Context(), s.ID)
	if err != nil {
		return errors.Wrap(err, "getting certificate")
	}
	return ctx.JSON(http.StatusOK, CertificateResponse{Certificate: cert})
}

func (api *studentApi) uploadCertificate(ctx echo.Context) error {
	s, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}

	var data CertificateResponse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CertificateResponse")
	}
	s, err := api.svc.UploadCertificate(ctx.Request().Context(), s.ID, data.Certificate)
	if err != nil {
		return errors.Wrap(err, "uploading certificate")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) setLeader(ctx echo.Context) error {
	s, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}

	var data LeaderRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LeaderRequest")
	}
	s, err := api.svc.SetLeader(ctx.Request().Context(), s.ID, data.IsLeader)
	if err != nil {
		return errors.Wrap(err, "setting leader")
	}
	return ctx.JSON(http.StatusOK, s)
}

// renderStudent hides the secrets of the Student from non-staff users.
func renderStudent(ctx echo.Context, code int, s student.Student) error {
	if claims, err := getContextClaims(ctx); err == nil && claims.IsStaff() {
		return ctx.JSON(code, s)
	}
	return ctx.JSON(code, s.Public())
}

// ctxStudentOrStaffMiddleware only lets staff members and the student themself through.
func ctxStudentOrStaffMiddleware(svc *student.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}

			if ctx.Param("id") == claims.StudentID || claims.IsStaff() {
				if s, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set("object", s)
					return next(ctx)
				} else if errors.Cause(err) != student.ErrNotFound {
					return errors.Wrap(err, "finding student by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

type (
	ConfirmEmailRequest struct {
		Code string `json:"code" validate:"required"`
	}

	PaymentRequest struct {
		Receipt string `json:"receipt"`
	}

	CertificateResponse struct {
		Certificate string `json:"certificate"`
	}

	LeaderRequest struct {
		IsLeader bool `json:"isLeader"`
	}
)

// studentClaims returns the claims of the logged in student, nil for staff.
func studentClaims(ctx echo.Context) (*Claims, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context claims")
	}
	if core.Contains(studentRoles, claims.Role) {
		return &claims, nil
	}
	return nil, nil
}
