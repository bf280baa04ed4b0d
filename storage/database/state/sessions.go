package statedb

import (
	"context"

	"github.com/trezcool/academia/core/session"
)

type sessionRepository struct {
	c *Collection[session.Session]
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{c: db.Sessions}
}

func (repo *sessionRepository) CreateSession(ctx context.Context, s session.Session) (session.Session, error) {
	if err := repo.c.Add(ctx, s); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

func (repo *sessionRepository) QuerySessions(_ context.Context, filter *session.QueryFilter) ([]session.Session, error) {
	return repo.c.Filter(filter.Match), nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string) (session.Session, error) {
	if s, ok := repo.c.Get(id); ok {
		return s, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, s session.Session) (session.Session, error) {
	if err := repo.c.Update(ctx, s); err != nil {
		if err == ErrNotFound {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, err
	}
	return s, nil
}

func (repo *sessionRepository) DeleteSessionsByID(ctx context.Context, ids ...string) (int, error) {
	return repo.c.Delete(ctx, ids...)
}
