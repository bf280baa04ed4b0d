package statedb

import (
	"context"

	"github.com/trezcool/academia/core/material"
)

type materialRepository struct {
	c *Collection[material.Material]
}

var _ material.Repository = (*materialRepository)(nil)

func NewMaterialRepository(db *DB) material.Repository {
	return &materialRepository{c: db.Materials}
}

func (repo *materialRepository) CreateMaterial(ctx context.Context, m material.Material) (material.Material, error) {
	if err := repo.c.Add(ctx, m); err != nil {
		return material.Material{}, err
	}
	return m, nil
}

func (repo *materialRepository) QueryMaterials(_ context.Context, match func(material.Material) bool) ([]material.Material, error) {
	return repo.c.Filter(match), nil
}

func (repo *materialRepository) GetMaterial(_ context.Context, id string) (material.Material, error) {
	if m, ok := repo.c.Get(id); ok {
		return m, nil
	}
	return material.Material{}, material.ErrNotFound
}

func (repo *materialRepository) DeleteMaterialsByID(ctx context.Context, ids ...string) (int, error) {
	return repo.c.Delete(ctx, ids...)
}
