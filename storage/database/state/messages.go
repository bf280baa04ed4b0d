package statedb

import (
	"context"

	"github.com/trezcool/academia/core/message"
)

type (
	messageRepository struct {
		c *Collection[message.Message]
	}

	groupMessageRepository struct {
		c *Collection[message.GroupMessage]
	}
)

var (
	_ message.Repository      = (*messageRepository)(nil)
	_ message.GroupRepository = (*groupMessageRepository)(nil)
)

func NewMessageRepository(db *DB) message.Repository {
	return &messageRepository{c: db.Messages}
}

func NewGroupMessageRepository(db *DB) message.GroupRepository {
	return &groupMessageRepository{c: db.GroupMessages}
}

func (repo *messageRepository) CreateMessage(ctx context.Context, m message.Message) (message.Message, error) {
	if err := repo.c.Add(ctx, m); err != nil {
		return message.Message{}, err
	}
	return m, nil
}

func (repo *messageRepository) QueryMessages(_ context.Context, match func(message.Message) bool) ([]message.Message, error) {
	return repo.c.Filter(match), nil
}

func (repo *messageRepository) GetMessage(_ context.Context, id string) (message.Message, error) {
	if m, ok := repo.c.Get(id); ok {
		return m, nil
	}
	return message.Message{}, message.ErrNotFound
}

func (repo *messageRepository) UpdateMessage(ctx context.Context, m message.Message) (message.Message, error) {
	if err := repo.c.Update(ctx, m); err != nil {
		if err == ErrNotFound {
			return message.Message{}, message.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (repo *messageRepository) DeleteMessagesByID(ctx context.Context, ids ...string) (int, error) {
	return repo.c.Delete(ctx, ids...)
}

func (repo *groupMessageRepository) CreateGroupMessage(ctx context.Context, m message.GroupMessage) (message.GroupMessage, error) {
	if err := repo.c.Add(ctx, m); err != nil {
		return message.GroupMessage{}, err
	}
	return m, nil
}

func (repo *groupMessageRepository) QueryGroupMessages(_ context.Context, sessionID string) ([]message.GroupMessage, error) {
	return repo.c.Filter(func(m message.GroupMessage) bool { return m.SessionID == sessionID }), nil
}

func (repo *groupMessageRepository) GetGroupMessage(_ context.Context, id string) (message.GroupMessage, error) {
	if m, ok := repo.c.Get(id); ok {
		return m, nil
	}
	return message.GroupMessage{}, message.ErrNotFound
}

func (repo *groupMessageRepository) UpdateGroupMessage(ctx context.Context, m message.GroupMessage) (message.GroupMessage, error) {
	if err := repo.c.Update(ctx, m); err != nil {
		if err == ErrNotFound {
			return message.GroupMessage{}, message.ErrNotFound
		}
		return message.GroupMessage{}, err
	}
	return m, nil
}
