package message

import (
	"context"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound = errors.New("message not found")
	ErrDeleted  = errors.New("message was deleted")
)

type (
	Repository interface {
		CreateMessage(ctx context.Context, m Message) (Message, error)
		QueryMessages(ctx context.Context, match func(Message) bool) ([]Message, error)
		GetMessage(ctx context.Context, id string) (Message, error)
		UpdateMessage(ctx context.Context, m Message) (Message, error)
		DeleteMessagesByID(ctx context.Context, ids ...string) (int, error)
	}

	GroupRepository interface {
		CreateGroupMessage(ctx context.Context, m GroupMessage) (GroupMessage, error)
		QueryGroupMessages(ctx context.Context, sessionID string) ([]GroupMessage, error)
		GetGroupMessage(ctx context.Context, id string) (GroupMessage, error)
		UpdateGroupMessage(ctx context.Context, m GroupMessage) (GroupMessage, error)
	}

	Service struct {
		repo      Repository
		groupRepo GroupRepository
		validate  *validator.Validate

		// serializes the read-modify-writes of messages
		mu sync.Mutex
	}
)

func NewService(repo Repository, groupRepo GroupRepository, validate *validator.Validate) *Service {
	return &Service{repo: repo, groupRepo: groupRepo, validate: validate}
}

// Direct messages

func (svc *Service) Send(ctx context.Context, nm NewMessage) (Message, error) {
	if err := nm.Validate(svc.validate); err != nil {
		return Message{}, err
	}
	return svc.repo.CreateMessage(ctx, Message{
		ID:            core.NewID(),
		SenderID:      nm.SenderID,
		SenderType:    nm.SenderType,
		RecipientID:   nm.RecipientID,
		RecipientType: nm.RecipientType,
		Content:       nm.Content,
		CreatedAt:     core.NowFunc(),
	})
}

// Inbox returns the messages received by userID, newest first.
func (svc *Service) Inbox(ctx context.Context, userID string) ([]Message, error) {
	msgs, err := svc.repo.QueryMessages(ctx, func(m Message) bool { return m.RecipientID == userID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })
	return msgs, nil
}

// Conversation returns the messages exchanged between a and b, oldest first.
func (svc *Service) Conversation(ctx context.Context, a, b string) ([]Message, error) {
	msgs, err := svc.repo.QueryMessages(ctx, func(m Message) bool {
		return (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (svc *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	msgs, err := svc.repo.QueryMessages(ctx, func(m Message) bool { return m.RecipientID == userID && !m.Read })
	return len(msgs), err
}

func (svc *Service) GetByID(ctx context.Context, id string) (Message, error) {
	return svc.repo.GetMessage(ctx, id)
}

func (svc *Service) MarkRead(ctx context.Context, id string) (Message, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	m, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if m.Read {
		return m, nil
	}
	m.Read = true
	return svc.repo.UpdateMessage(ctx, m)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteMessagesByID(ctx, ids...)
}

// Group messages

func (svc *Service) PostGroup(ctx context.Context, nm NewGroupMessage) (GroupMessage, error) {
	if err := nm.Validate(svc.validate); err != nil {
		return GroupMessage{}, err
	}
	now := core.NowFunc()
	return svc.groupRepo.CreateGroupMessage(ctx, GroupMessage{
		ID:         core.NewID(),
		SessionID:  nm.SessionID,
		SenderID:   nm.SenderID,
		SenderName: nm.SenderName,
		SenderType: nm.SenderType,
		Content:    nm.Content,
		Type:       nm.Type,
		FileName:   nm.FileName,
		FileData:   nm.FileData,
		Duration:   nm.Duration,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// GroupMessages returns the group chat of sessionID (the general chat if empty), oldest first.
func (svc *Service) GroupMessages(ctx context.Context, sessionID string) ([]GroupMessage, error) {
	msgs, err := svc.groupRepo.QueryGroupMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (svc *Service) GetGroupByID(ctx context.Context, id string) (GroupMessage, error) {
	return svc.groupRepo.GetGroupMessage(ctx, id)
}

func (svc *Service) EditGroup(ctx context.Context, id, content string) (GroupMessage, error) {
	content = core.CleanString(content)
	if content == "" {
		return GroupMessage{}, core.NewFieldError("content", "this field is required")
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	m, err := svc.groupRepo.GetGroupMessage(ctx, id)
	if err != nil {
		return GroupMessage{}, err
	}
	if m.Deleted {
		return GroupMessage{}, ErrDeleted
	}
	m.Content = content
	m.Edited = true
	m.UpdatedAt = core.NowFunc()
	return svc.groupRepo.UpdateGroupMessage(ctx, m)
}

// DeleteGroup soft-deletes a group message: its content is replaced by DeletedPlaceholder.
// Deleting an already deleted message is a no-op.
func (svc *Service) DeleteGroup(ctx context.Context, id string) (GroupMessage, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	m, err := svc.groupRepo.GetGroupMessage(ctx, id)
	if err != nil {
		return GroupMessage{}, err
	}
	if m.Deleted {
		return m, nil
	}
	m.Content = DeletedPlaceholder
	m.Deleted = true
	m.FileName = ""
	m.FileData = ""
	m.UpdatedAt = core.NowFunc()
	return svc.groupRepo.UpdateGroupMessage(ctx, m)
}
