package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/session"
	"github.com/trezcool/academia/core/student"
)

var errSessionNotFoundInCtx = errors.New("session object not found in echo.Context")

type sessionApi struct {
	svc        *session.Service
	studentSvc *student.Service
}

func registerSessionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *session.Service,
	studentSvc *student.Service,
) {
	api := sessionApi{svc: svc, studentSvc: studentSvc}

	sg := g.Group("/sessions")

	// un-authed endpoints
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve, sessionMiddleware(svc))

	// staff endpoints
	ag := sg.Group("", jwt, roleMiddleware(managerRoles...))
	ag.POST("", api.create)

	dg := ag.Group("/:id", sessionMiddleware(svc))
	dg.PATCH("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.GET("/students", api.students)
	dg.POST("/facilitators", api.addFacilitator)
	dg.DELETE("/facilitators/:name", api.removeFacilitator)
}

// Handlers

func (api *sessionApi) query(ctx echo.Context) error {
	filter := new(session.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []session.Session{})
	}
	sessions, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) create(ctx echo.Context) error {
	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	sess, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, ok := ctx.Get("object").(session.Session)
	if !ok {
		return errors.Wrap(errSessionNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) update(ctx echo.Context) error {
	sess, ok := ctx.Get("object").(session.Session)
	if !ok {
		return errors.Wrap(errSessionNotFoundInCtx, "retrieving object from context")
	}

	var data session.Patch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to session.Patch")
	}
	sess, err := api.svc.Update(ctx.Request().Context(), sess.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	sess, ok := ctx.Get("object").(session.Session)
	if !ok {
		return errors.Wrap(errSessionNotFoundInCtx, "retrieving object from context")
	}
	if _, err := api.svc.Delete(ctx.Request().Context(), sess.ID); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) students(ctx echo.Context) error {
	sess, ok := ctx.Get("object").(session.Session)
	if !ok {
		return errors.Wrap(errSessionNotFoundInCtx, "retrieving object from context")
	}
	students, err := api.studentSvc.InSession(ctx.Request().Context(), sess.ID)
	if err != nil {
		return errors.Wrap(err, "querying session students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *sessionApi) addFacilitator(ctx echo.Context) error {
	sess, ok := ctx.Get("object").(session.Session)
	if !ok {
		return errors.Wrap(errSessionNotFoundInCtx, "retrieving object from context")
	}

	var data session.Facilitator
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Facilitator")
	}
	sess, err := api.svc.AddFacilitator(ctx.Request().Context(), sess.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding facilitator")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) removeFacilitator(ctx echo.Context) error {
	sess, ok := ctx.Get("object").(session.Session)
	if !ok {
		return errors.Wrap(errSessionNotFoundInCtx, "retrieving object from context")
	}
	sess, err := api.svc.RemoveFacilitator(ctx.Request().Context(), sess.ID, ctx.Param("name"))
	if err != nil {
		return errors.Wrap(err, "removing facilitator")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func sessionMiddleware(svc *session.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == session.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding session by ID")
			}
			ctx.Set("object", sess)
			return next(ctx)
		}
	}
}
