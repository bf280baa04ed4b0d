package material

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var ErrNotFound = errors.New("material not found")

// Material is a course document shared with the students of a program or session.
type Material struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	FileName    string    `json:"fileName"`
	FileData    string    `json:"fileData"` // data URL
	Program     string    `json:"program,omitempty"`
	SessionID   string    `json:"sessionId,omitempty"`
	UploadedBy  string    `json:"uploadedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (m Material) GetID() string { return m.ID }

type NewMaterial struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	FileName    string `json:"fileName" validate:"required"`
	FileData    string `json:"fileData" validate:"required,dataurl"`
	Program     string `json:"program"`
	SessionID   string `json:"sessionId"`
	UploadedBy  string `json:"uploadedBy" validate:"required"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.FileName = core.CleanString(nm.FileName)
	nm.Program = core.CleanString(nm.Program)
	return validate.Struct(nm)
}

type (
	Repository interface {
		CreateMaterial(ctx context.Context, m Material) (Material, error)
		QueryMaterials(ctx context.Context, match func(Material) bool) ([]Material, error)
		GetMaterial(ctx context.Context, id string) (Material, error)
		DeleteMaterialsByID(ctx context.Context, ids ...string) (int, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) Add(ctx context.Context, nm NewMaterial) (Material, error) {
	if err := nm.Validate(svc.validate); err != nil {
		return Material{}, err
	}
	return svc.repo.CreateMaterial(ctx, Material{
		ID:          core.NewID(),
		Title:       nm.Title,
		Description: nm.Description,
		FileName:    nm.FileName,
		FileData:    nm.FileData,
		Program:     nm.Program,
		SessionID:   nm.SessionID,
		UploadedBy:  nm.UploadedBy,
		CreatedAt:   core.NowFunc(),
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Material, error) {
	return svc.repo.GetMaterial(ctx, id)
}

func (svc *Service) All(ctx context.Context) ([]Material, error) {
	return svc.query(ctx, func(Material) bool { return true })
}

// ForSession returns the materials of the session, and those shared with every session.
func (svc *Service) ForSession(ctx context.Context, sessionID string) ([]Material, error) {
	return svc.query(ctx, func(m Material) bool { return m.SessionID == "" || m.SessionID == sessionID })
}

func (svc *Service) ForProgram(ctx context.Context, program string) ([]Material, error) {
	program = core.CleanString(program, true)
	return svc.query(ctx, func(m Material) bool {
		return m.Program == "" || core.CleanString(m.Program, true) == program
	})
}

func (svc *Service) query(ctx context.Context, match func(Material) bool) ([]Material, error) {
	mats, err := svc.repo.QueryMaterials(ctx, match)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(mats, func(i, j int) bool { return mats[i].CreatedAt.After(mats[j].CreatedAt) })
	return mats, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteMaterialsByID(ctx, ids...)
}
