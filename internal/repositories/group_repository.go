package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/anonto42/yatube/backend/internal/apperr"
	"github.com/anonto42/yatube/backend/internal/models"
)

// GroupRepository defines the interface for group data operations
type GroupRepository interface {
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroupByID(ctx context.Context, id uint) (*models.Group, error)
	GetGroupBySlug(ctx context.Context, slug string) (*models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	DeleteGroup(ctx context.Context, slug string) error
}

// GormGroupRepository implements GroupRepository using GORM.
type GormGroupRepository struct {
	db *gorm.DB
}

// NewGormGroupRepository creates a new GormGroupRepository
func NewGormGroupRepository(db *gorm.DB) *GormGroupRepository {
	return &GormGroupRepository{db: db}
}

func (r *GormGroupRepository) CreateGroup(ctx context.Context, group *models.Group) error {
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("group %q: %w", group.Slug, apperr.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *GormGroupRepository) GetGroupByID(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, id).Error; err != nil {
		return nil, wrapNotFound(err, "group %d", id)
	}
	return &group, nil
}

func (r *GormGroupRepository) GetGroupBySlug(ctx context.Context, slug string) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&group).Error; err != nil {
		return nil, wrapNotFound(err, "group %q", slug)
	}
	return &group, nil
}

// ListGroups returns every group ordered by title, descending.
func (r *GormGroupRepository) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := r.db.WithContext(ctx).Order("title DESC").Order("id DESC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// DeleteGroup detaches the group's posts and then removes the group, in one
// transaction. Posts are never deleted with their group.
func (r *GormGroupRepository) DeleteGroup(ctx context.Context, slug string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Where("slug = ?", slug).First(&group).Error; err != nil {
			return wrapNotFound(err, "group %q", slug)
		}
		if err := tx.Model(&models.Post{}).Where("group_id = ?", group.ID).Update("group_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&group).Error
	})
}

var _ GroupRepository = (*GormGroupRepository)(nil)
