package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/material"
	"github.com/trezcool/academia/core/student"
)

type materialApi struct {
	svc        *material.Service
	studentSvc *student.Service
}

func registerMaterialAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *material.Service, studentSvc *student.Service) {
	api := materialApi{svc: svc, studentSvc: studentSvc}

	mg := g.Group("/materials", jwt)
	mg.GET("", api.query)
	mg.POST("", api.create, roleMiddleware(staffRoles...))
	mg.DELETE("/:id", api.destroy, roleMiddleware(staffRoles...))
}

// query lists every material to staff members.
// Students get the materials of one of their sessions (`session` param), or of their program.
func (api *materialApi) query(ctx echo.Context) error {
	sc, err := studentClaims(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	sessionID := ctx.QueryParam("session")

	var mats []material.Material
	switch {
	case sc == nil && sessionID == "":
		mats, err = api.svc.All(reqCtx)
	case sc == nil:
		mats, err = api.svc.ForSession(reqCtx, sessionID)
	default:
		s, sErr := api.studentSvc.GetByID(reqCtx, sc.StudentID)
		if sErr != nil {
			return errors.Wrap(sErr, "finding context student")
		}
		if sessionID == "" {
			mats, err = api.svc.ForProgram(reqCtx, s.Program)
		} else if s.HasSession(sessionID) {
			mats, err = api.svc.ForSession(reqCtx, sessionID)
		} else {
			return errHttpForbidden
		}
	}
	if err != nil {
		return errors.Wrap(err, "querying materials")
	}
	if mats == nil {
		mats = []material.Material{}
	}
	return ctx.JSON(http.StatusOK, mats)
}

func (api *materialApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data material.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	data.UploadedBy = claims.Role
	m, err := api.svc.Add(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding material")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *materialApi) destroy(ctx echo.Context) error {
	n, err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting material")
	}
	if n == 0 {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}
