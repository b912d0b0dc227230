package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"gym-booking-service/internal/model"
	"gym-booking-service/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClassPatch carries a partial template update; nil fields are left as is.
type ClassPatch struct {
	Name               *string                   `json:"name"`
	Description        *string                   `json:"description"`
	Type               *model.ClassType          `json:"type"`
	TrainerID          *uuid.UUID                `json:"trainer_id"`
	MaxCapacity        *int                      `json:"max_capacity"`
	DurationMinutes    *int                      `json:"duration_minutes"`
	Price              *decimal.Decimal          `json:"price"`
	Schedule           *model.Schedule           `json:"schedule"`
	CancellationPolicy *model.CancellationPolicy `json:"cancellation_policy"`
	Difficulty         *model.Difficulty         `json:"difficulty"`
	Location           *model.Location           `json:"location"`
	Requirements       *model.StringList         `json:"requirements"`
	Equipment          *model.StringList         `json:"equipment"`
	Tags               *model.StringList         `json:"tags"`
	IsBookable         *bool                     `json:"is_bookable"`
}

// ImagePresigner issues short-lived upload URLs for class images.
type ImagePresigner interface {
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
}

type ImageUpload struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
}

type ClassService interface {
	Create(ctx context.Context, actor Actor, class *model.ClassTemplate) (*model.ClassTemplate, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, patch ClassPatch) (*model.ClassTemplate, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*model.ClassTemplate, error)
	List(ctx context.Context, actor Actor, filter repository.ClassFilter) (*repository.PaginatedClasses, error)
	SetStatus(ctx context.Context, actor Actor, id uuid.UUID, status model.ClassStatus) (*model.ClassTemplate, error)
	CreateImageUpload(ctx context.Context, actor Actor, id uuid.UUID, contentType string) (*ImageUpload, error)
	SetImage(ctx context.Context, actor Actor, id uuid.UUID, key string) (*model.ClassTemplate, error)
}

type classService struct {
	classRepo repository.ClassRepository
	validate  *validator.Validate
	presigner ImagePresigner
	now       func() time.Time
}

func NewClassService(repo repository.ClassRepository, validate *validator.Validate, presigner ImagePresigner) ClassService {
	return &classService{classRepo: repo, validate: validate, presigner: presigner, now: time.Now}
}

func (s *classService) Create(ctx context.Context, actor Actor, class *model.ClassTemplate) (*model.ClassTemplate, error) {
	if !actor.Role.IsPrivileged() {
		return nil, ErrForbidden
	}

	if class.TrainerID == uuid.Nil && actor.Role == model.RoleTrainer {
		class.TrainerID = actor.UserID
	}
	if class.Status == "" {
		class.Status = model.ClassStatusActive
	}
	if class.Schedule == nil {
		class.Schedule = model.Schedule{}
	}
	if class.CancellationPolicy == (model.CancellationPolicy{}) {
		class.CancellationPolicy = model.DefaultCancellationPolicy
	}

	if err := validateTemplate(s.validate, class); err != nil {
		return nil, err
	}

	return s.classRepo.Create(ctx, class)
}

func (s *classService) Update(ctx context.Context, actor Actor, id uuid.UUID, patch ClassPatch) (*model.ClassTemplate, error) {
	class, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	applyPatch(class, patch)

	if err := validateTemplate(s.validate, class); err != nil {
		return nil, err
	}

	updated, err := s.classRepo.Update(ctx, class)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrClassNotFound
	}
	return updated, err
}

func (s *classService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*model.ClassTemplate, error) {
	class, err := s.classRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, ErrClassNotFound
	}
	if class.Status == model.ClassStatusCancelled && !actor.Role.IsPrivileged() {
		return nil, ErrClassNotFound
	}
	return class, nil
}

func (s *classService) List(ctx context.Context, actor Actor, filter repository.ClassFilter) (*repository.PaginatedClasses, error) {
	if !actor.Role.IsPrivileged() {
		if filter.Status == model.ClassStatusCancelled {
			return &repository.PaginatedClasses{
				Data: []model.ClassTemplate{},
				Meta: repository.EmptyPaginationMeta(filter.Page, filter.Limit),
			}, nil
		}
		filter.ExcludeCancelled = true
	}
	return s.classRepo.List(ctx, filter)
}

func (s *classService) SetStatus(ctx context.Context, actor Actor, id uuid.UUID, status model.ClassStatus) (*model.ClassTemplate, error) {
	if _, err := s.loadOwned(ctx, actor, id); err != nil {
		return nil, err
	}

	switch status {
	case model.ClassStatusActive, model.ClassStatusInactive, model.ClassStatusCancelled:
	default:
		return nil, newValidationError("status", "oneof")
	}

	class, err := s.classRepo.UpdateStatus(ctx, id, status)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrClassNotFound
	}
	return class, err
}

func (s *classService) CreateImageUpload(ctx context.Context, actor Actor, id uuid.UUID, contentType string) (*ImageUpload, error) {
	if s.presigner == nil {
		return nil, ErrStorageUnavailable
	}
	if _, err := s.loadOwned(ctx, actor, id); err != nil {
		return nil, err
	}

	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, newValidationError("content_type", "oneof")
	}

	key := path.Join("classes", id.String(), fmt.Sprintf("%d%s", s.now().UnixNano(), ext))
	url, err := s.presigner.PresignUpload(ctx, key, contentType)
	if err != nil {
		return nil, err
	}
	return &ImageUpload{UploadURL: url, Key: key}, nil
}

func (s *classService) SetImage(ctx context.Context, actor Actor, id uuid.UUID, key string) (*model.ClassTemplate, error) {
	class, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(key, "classes/"+id.String()+"/") {
		return nil, newValidationError("key", "prefix")
	}

	class.ImageKey = &key
	updated, err := s.classRepo.Update(ctx, class)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrClassNotFound
	}
	return updated, err
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// loadOwned returns the template if the actor may manage it. Trainers manage
// their own classes; admins manage all.
func (s *classService) loadOwned(ctx context.Context, actor Actor, id uuid.UUID) (*model.ClassTemplate, error) {
	if !actor.Role.IsPrivileged() {
		return nil, ErrForbidden
	}

	class, err := s.classRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, ErrClassNotFound
	}
	if actor.Role == model.RoleTrainer && class.TrainerID != actor.UserID {
		return nil, ErrForbidden
	}
	return class, nil
}

func applyPatch(class *model.ClassTemplate, p ClassPatch) {
	if p.Name != nil {
		class.Name = *p.Name
	}
	if p.Description != nil {
		class.Description = *p.Description
	}
	if p.Type != nil {
		class.Type = *p.Type
	}
	if p.TrainerID != nil {
		class.TrainerID = *p.TrainerID
	}
	if p.MaxCapacity != nil {
		class.MaxCapacity = *p.MaxCapacity
	}
	if p.DurationMinutes != nil {
		class.DurationMinutes = *p.DurationMinutes
	}
	if p.Price != nil {
		class.Price = *p.Price
	}
	if p.Schedule != nil {
		class.Schedule = *p.Schedule
	}
	if p.CancellationPolicy != nil {
		class.CancellationPolicy = *p.CancellationPolicy
	}
	if p.Difficulty != nil {
		class.Difficulty = *p.Difficulty
	}
	if p.Location != nil {
		class.Location = *p.Location
	}
	if p.Requirements != nil {
		class.Requirements = *p.Requirements
	}
	if p.Equipment != nil {
		class.Equipment = *p.Equipment
	}
	if p.Tags != nil {
		class.Tags = *p.Tags
	}
	if p.IsBookable != nil {
		class.IsBookable = *p.IsBookable
	}
}
