package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/staff"
)

type staffApi struct {
	svc *staff.Service
}

func registerStaffAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *staff.Service) {
	api := staffApi{svc: svc}

	sg := g.Group("/staff")
	sg.GET("", api.query)
	sg.GET("/:role", api.retrieve)
	sg.PUT("/:role", api.upsert, jwt, adminMiddleware())
}

func (api *staffApi) query(ctx echo.Context) error {
	profiles, err := api.svc.All(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying staff profiles")
	}
	if profiles == nil {
		profiles = []staff.Profile{}
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (api *staffApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("role"))
	if err != nil {
		return errors.Wrap(err, "getting staff profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *staffApi) upsert(ctx echo.Context) error {
	var data staff.Profile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to staff.Profile")
	}
	data.Role = ctx.Param("role")
	p, err := api.svc.Upsert(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving staff profile")
	}
	return ctx.JSON(http.StatusOK, p)
}
