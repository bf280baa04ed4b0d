package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/editor"
	statedb "github.com/trezcool/academia/storage/database/state"
)

const ClearDataConfirmation = statedb.ClearAllConfirmation

type adminApi struct {
	editor   *editor.Editor
	db       *statedb.DB
	log      core.Logger
	validate *validator.Validate
}

func registerAdminAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	ed *editor.Editor,
	db *statedb.DB,
	logger core.Logger,
	validate *validator.Validate,
) {
	api := adminApi{editor: ed, db: db, log: logger, validate: validate}

	eg := g.Group("/editor", jwt, adminMiddleware())
	eg.POST("", api.edit)
	eg.GET("/capabilities", api.capabilities)

	ag := g.Group("/admin", jwt, adminMiddleware())
	ag.POST("/clear-data", api.clearData)
}

func (api *adminApi) edit(ctx echo.Context) error {
	var data EditorRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditorRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.editor.Process(ctx.Request().Context(), data.Text))
}

func (api *adminApi) capabilities(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, editor.Capabilities())
}

func (api *adminApi) clearData(ctx echo.Context) error {
	var data ClearDataRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ClearDataRequest")
	}
	if data.Confirmation != ClearDataConfirmation {
		return core.NewFieldError("confirmation", "type "+ClearDataConfirmation+" to confirm")
	}
	if err := api.db.ClearAll(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "clearing all data")
	}
	api.log.Warn("all data cleared", map[string]interface{}{"ip": ctx.RealIP()})
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "All data was deleted."})
}

type (
	EditorRequest struct {
		Text string `json:"text" validate:"required"`
	}

	ClearDataRequest struct {
		Confirmation string `json:"confirmation"`
	}
)
