package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/message"
	"github.com/trezcool/academia/core/student"
)

type messageApi struct {
	svc        *message.Service
	studentSvc *student.Service
}

func registerMessageAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *message.Service, studentSvc *student.Service) {
	api := messageApi{svc: svc, studentSvc: studentSvc}

	mg := g.Group("/messages", jwt)
	mg.GET("", api.inbox)
	mg.POST("", api.send)
	mg.GET("/unread", api.unreadCount)
	mg.GET("/conversation/:userId", api.conversation)
	mg.POST("/:id/read", api.markRead)
	mg.DELETE("/:id", api.destroy)

	gg := g.Group("/group-messages", jwt)
	gg.GET("", api.groupMessages)
	gg.POST("", api.postGroup)
	gg.PATCH("/:id", api.editGroup)
	gg.DELETE("/:id", api.deleteGroup)
}

// Direct messages

func (api *messageApi) inbox(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	msgs, err := api.svc.Inbox(ctx.Request().Context(), claims.UserID())
	if err != nil {
		return errors.Wrap(err, "querying inbox")
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) unreadCount(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	n, err := api.svc.UnreadCount(ctx.Request().Context(), claims.UserID())
	if err != nil {
		return errors.Wrap(err, "counting unread messages")
	}
	return ctx.JSON(http.StatusOK, UnreadResponse{Count: n})
}

func (api *messageApi) conversation(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	msgs, err := api.svc.Conversation(ctx.Request().Context(), claims.UserID(), ctx.Param("userId"))
	if err != nil {
		return errors.Wrap(err, "querying conversation")
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) send(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data SendMessageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendMessageRequest")
	}
	msg, err := api.svc.Send(ctx.Request().Context(), message.NewMessage{
		SenderID:      claims.UserID(),
		SenderType:    claims.Role,
		RecipientID:   data.RecipientID,
		RecipientType: data.RecipientType,
		Content:       data.Content,
	})
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) markRead(ctx echo.Context) error {
	msg, err := api.ownMessage(ctx, false)
	if err != nil {
		return err
	}
	msg, err = api.svc.MarkRead(ctx.Request().Context(), msg.ID)
	if err != nil {
		return errors.Wrap(err, "marking message read")
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *messageApi) destroy(ctx echo.Context) error {
	msg, err := api.ownMessage(ctx, true)
	if err != nil {
		return err
	}
	if _, err := api.svc.Delete(ctx.Request().Context(), msg.ID); err != nil {
		return errors.Wrap(err, "deleting message")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ownMessage returns the message of the `id` param if it was received (or sent) by the context user.
func (api *messageApi) ownMessage(ctx echo.Context, orSent bool) (message.Message, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return message.Message{}, errors.Wrap(err, "getting context claims")
	}
	msg, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == message.ErrNotFound {
			return message.Message{}, errHttpNotFound
		}
		return message.Message{}, errors.Wrap(err, "finding message by ID")
	}
	if msg.RecipientID == claims.UserID() || (orSent && msg.SenderID == claims.UserID()) {
		return msg, nil
	}
	return message.Message{}, errHttpNotFound
}

// Group messages

func (api *messageApi) groupMessages(ctx echo.Context) error {
	sessionID := ctx.QueryParam("session")
	if err := api.checkGroupAccess(ctx, sessionID); err != nil {
		return err
	}
	msgs, err := api.svc.GroupMessages(ctx.Request().Context(), sessionID)
	if err != nil {
		return errors.Wrap(err, "querying group messages")
	}
	if msgs == nil {
		msgs = []message.GroupMessage{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) postGroup(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data GroupMessageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GroupMessageRequest")
	}
	if err := api.checkGroupAccess(ctx, data.SessionID); err != nil {
		return err
	}

	senderName := claims.Role
	if claims.StudentID != "" {
		s, err := api.studentSvc.GetByID(ctx.Request().Context(), claims.StudentID)
		if err != nil {
			return errors.Wrap(err, "finding sender")
		}
		senderName = s.Name
	}

	msg, err := api.svc.PostGroup(ctx.Request().Context(), message.NewGroupMessage{
		SessionID:  data.SessionID,
		SenderID:   claims.UserID(),
		SenderName: senderName,
		SenderType: claims.Role,
		Content:    data.Content,
		Type:       data.Type,
		FileName:   data.FileName,
		FileData:   data.FileData,
		Duration:   time.Duration(data.Duration * float64(time.Second)),
	})
	if err != nil {
		return errors.Wrap(err, "posting group message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) editGroup(ctx echo.Context) error {
	msg, err := api.ownGroupMessage(ctx)
	if err != nil {
		return err
	}

	var data EditGroupMessageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditGroupMessageRequest")
	}
	msg, err = api.svc.EditGroup(ctx.Request().Context(), msg.ID, data.Content)
	if err != nil {
		return errors.Wrap(err, "editing group message")
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *messageApi) deleteGroup(ctx echo.Context) error {
	msg, err := api.ownGroupMessage(ctx)
	if err != nil {
		return err
	}
	msg, err = api.svc.DeleteGroup(ctx.Request().Context(), msg.ID)
	if err != nil {
		return errors.Wrap(err, "deleting group message")
	}
	return ctx.JSON(http.StatusOK, msg)
}

// ownGroupMessage returns the group message of the `id` param if the context user may change it:
// its sender, or any staff member.
func (api *messageApi) ownGroupMessage(ctx echo.Context) (message.GroupMessage, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return message.GroupMessage{}, errors.Wrap(err, "getting context claims")
	}
	msg, err := api.svc.GetGroupByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == message.ErrNotFound {
			return message.GroupMessage{}, errHttpNotFound
		}
		return message.GroupMessage{}, errors.Wrap(err, "finding group message by ID")
	}
	if msg.SenderID == claims.UserID() || claims.IsStaff() {
		return msg, nil
	}
	return message.GroupMessage{}, errHttpForbidden
}

// checkGroupAccess only lets students in the chats of their sessions (and the general chat).
func (api *messageApi) checkGroupAccess(ctx echo.Context, sessionID string) error {
	sc, err := studentClaims(ctx)
	if err != nil || sc == nil || sessionID == "" {
		return err
	}
	s, err := api.studentSvc.GetByID(ctx.Request().Context(), sc.StudentID)
	if err != nil {
		return errors.Wrap(err, "finding context student")
	}
	if !s.HasSession(sessionID) {
		return errHttpForbidden
	}
	return nil
}

type (
	SendMessageRequest struct {
		RecipientID   string `json:"recipientId"`
		RecipientType string `json:"recipientType"`
		Content       string `json:"content"`
	}

	GroupMessageRequest struct {
		SessionID string       `json:"sessionId"`
		Content   string       `json:"content"`
		Type      message.Type `json:"type"`
		FileName  string       `json:"fileName"`
		FileData  string       `json:"fileData"`
		Duration  float64      `json:"duration"` // seconds
	}

	EditGroupMessageRequest struct {
		Content string `json:"content"`
	}

	UnreadResponse struct {
		Count int `json:"count"`
	}
)
