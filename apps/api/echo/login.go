package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
)

type authApi struct {
	svc      *auth.Service
	conf     *core.Config
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *auth.Service, conf *core.Config, validate *validator.Validate) {
	api := authApi{svc: svc, conf: conf, validate: validate}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login)
	ag.POST("/student-login", api.studentLogin)

	// authed endpoints
	ag.GET("/me", api.me, jwt)
	ag.POST("/logout", api.logout, jwt)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	state, err := api.svc.LoginStaff(ctx.Request().Context(), data.Role, data.Password)
	if err != nil {
		if errors.Cause(err) == auth.ErrInvalidCredentials {
			return errAuthenticationFailed
		}
		return errors.Wrap(err, "logging staff in")
	}
	return api.respondWithToken(ctx, state)
}

func (api *authApi) studentLogin(ctx echo.Context) error {
	var data StudentLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentLoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	state, err := api.svc.LoginStudent(ctx.Request().Context(), data.Email, data.RegistrationNumber)
	if err != nil {
		if errors.Cause(err) == auth.ErrInvalidCredentials {
			return errAuthenticationFailed
		}
		return errors.Wrap(err, "logging student in")
	}
	return api.respondWithToken(ctx, state)
}

func (api *authApi) respondWithToken(ctx echo.Context, state auth.State) error {
	token, err := GenerateToken(stateClaims(api.conf, state), api.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, State: state})
}

func (api *authApi) me(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return ctx.JSON(http.StatusOK, MeResponse{Role: claims.Role, UserID: claims.UserID(), StudentID: claims.StudentID})
}

func (api *authApi) logout(ctx echo.Context) error {
	if err := api.svc.Logout(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	LoginRequest struct {
		Role     string `json:"role" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	StudentLoginRequest struct {
		Email              string `json:"email" validate:"required,email"`
		RegistrationNumber string `json:"registrationNumber" validate:"required"`
	}

	LoginResponse struct {
		Token string     `json:"token"`
		State auth.State `json:"state"`
	}

	MeResponse struct {
		Role      string `json:"role"`
		UserID    string `json:"userId"`
		StudentID string `json:"studentId,omitempty"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}

	DeleteResponse struct {
		Deleted int `json:"deleted"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Role = core.CleanString(lr.Role, true /* lower */)
	return validate.Struct(lr)
}

func (lr *StudentLoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	lr.RegistrationNumber = core.CleanString(lr.RegistrationNumber)
	return validate.Struct(lr)
}
