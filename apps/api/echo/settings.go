package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/settings"
)

type settingsApi struct {
	svc *settings.Service
}

func registerSettingsAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *settings.Service) {
	api := settingsApi{svc: svc}

	sg := g.Group("/settings")
	sg.GET("", api.retrieve)

	ag := sg.Group("", jwt, adminMiddleware())
	ag.PATCH("", api.update)
	ag.PUT("/announcement", api.setAnnouncement)
	ag.DELETE("/announcement", api.clearAnnouncement)
	ag.POST("/features", api.addFeature)
	ag.DELETE("/features", api.removeFeature)
	ag.PUT("/social-links/:network", api.setSocialLink)
}

// Handlers

func (api *settingsApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *settingsApi) update(ctx echo.Context) error {
	var data settings.Patch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to settings.Patch")
	}
	s, err := api.svc.Update(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *settingsApi) setAnnouncement(ctx echo.Context) error {
	var data AnnouncementRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnnouncementRequest")
	}
	s, err := api.svc.SetAnnouncement(ctx.Request().Context(), data.Text)
	if err != nil {
		return errors.Wrap(err, "setting announcement")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *settingsApi) clearAnnouncement(ctx echo.Context) error {
	s, err := api.svc.ClearAnnouncement(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "clearing announcement")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *settingsApi) addFeature(ctx echo.Context) error {
	var data FeatureRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FeatureRequest")
	}
	s, err := api.svc.AddFeature(ctx.Request().Context(), data.Feature)
	if err != nil {
		return errors.Wrap(err, "adding feature")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *settingsApi) removeFeature(ctx echo.Context) error {
	s, removed, err := api.svc.RemoveFeature(ctx.Request().Context(), ctx.QueryParam("feature"))
	if err != nil {
		return errors.Wrap(err, "removing feature")
	}
	if !removed {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *settingsApi) setSocialLink(ctx echo.Context) error {
	var data SocialLinkRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SocialLinkRequest")
	}
	s, err := api.svc.SetSocialLink(ctx.Request().Context(), ctx.Param("network"), data.URL)
	if err != nil {
		return errors.Wrap(err, "setting social link")
	}
	return ctx.JSON(http.StatusOK, s)
}

type (
	AnnouncementRequest struct {
		Text string `json:"text"`
	}

	FeatureRequest struct {
		Feature string `json:"feature"`
	}

	SocialLinkRequest struct {
		URL string `json:"url"`
	}
)
