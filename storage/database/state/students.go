package statedb

import (
	"context"
	"strings"

	"github.com/trezcool/academia/core/student"
)

type studentRepository struct {
	c *Collection[student.Student]
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{c: db.Students}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	if err := repo.c.Add(ctx, s); err != nil {
		return student.Student{}, err
	}
	return s, nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter *student.QueryFilter) ([]student.Student, error) {
	return repo.c.Filter(filter.Match), nil
}

func (repo *studentRepository) GetStudent(_ context.Context, filter student.GetFilter) (student.Student, error) {
	var match func(student.Student) bool
	switch {
	case filter.ID != "":
		match = func(s student.Student) bool { return s.ID == filter.ID }
	case filter.Email != "":
		match = func(s student.Student) bool { return strings.EqualFold(s.Email, filter.Email) }
	case filter.RegistrationNumber != "":
		match = func(s student.Student) bool { return strings.EqualFold(s.RegistrationNumber, filter.RegistrationNumber) }
	default:
		return student.Student{}, student.ErrNotFound
	}
	if s, ok := repo.c.Find(match); ok {
		return s, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	if err := repo.c.Update(ctx, s); err != nil {
		if err == ErrNotFound {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, err
	}
	return s, nil
}

func (repo *studentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) (int, error) {
	return repo.c.Delete(ctx, ids...)
}
