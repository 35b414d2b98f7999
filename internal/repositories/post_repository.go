package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/anonto42/yatube/backend/internal/apperr"
	"github.com/anonto42/yatube/backend/internal/models"
)

// commentCountColumn loads Post.CommentCount in the same statement as the posts.
const commentCountColumn = "posts.*, (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count"

type filterKind int

const (
	filterAll filterKind = iota
	filterGroup
	filterAuthor
	filterAuthorSet
)

// PostFilter selects the posts a list query runs over.
type PostFilter struct {
	kind filterKind
	id   uint
	ids  []uint
}

// AllPosts matches every post.
func AllPosts() PostFilter { return PostFilter{kind: filterAll} }

// ByGroup matches posts filed under the group.
func ByGroup(groupID uint) PostFilter { return PostFilter{kind: filterGroup, id: groupID} }

// ByAuthor matches posts written by the user.
func ByAuthor(authorID uint) PostFilter { return PostFilter{kind: filterAuthor, id: authorID} }

// ByAuthorSet matches posts written by any of the users. An empty set matches nothing.
func ByAuthorSet(authorIDs []uint) PostFilter {
	return PostFilter{kind: filterAuthorSet, ids: authorIDs}
}

func (f PostFilter) apply(db *gorm.DB) *gorm.DB {
	switch f.kind {
	case filterGroup:
		return db.Where("posts.group_id = ?", f.id)
	case filterAuthor:
		return db.Where("posts.author_id = ?", f.id)
	case filterAuthorSet:
		if len(f.ids) == 0 {
			return db.Where("1 = 0")
		}
		return db.Where("posts.author_id IN ?", f.ids)
	default:
		return db
	}
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id uint) (*models.Post, error)
	GetPostByAuthor(ctx context.Context, username string, id uint) (*models.Post, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	ListPosts(ctx context.Context, filter PostFilter, offset, limit int) ([]models.Post, int64, error)
	ImageKeys(ctx context.Context, authorID uint) ([]string, error)
}

// GormPostRepository implements PostRepository using GORM.
type GormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository creates a new GormPostRepository
func NewGormPostRepository(db *gorm.DB) *GormPostRepository {
	return &GormPostRepository{db: db}
}

// withRelations selects posts together with their comment count and
// preloads author and group, so a page renders without further queries.
func withRelations(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Post{}).
		Select(commentCountColumn).
		Preload("Author").
		Preload("Group")
}

// CreatePost inserts the post. Author and Group are references only and are never upserted.
func (r *GormPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error
}

func (r *GormPostRepository) GetPostByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := withRelations(r.db.WithContext(ctx)).Where("posts.id = ?", id).First(&post).Error
	if err != nil {
		return nil, wrapNotFound(err, "post %d", id)
	}
	return &post, nil
}

// GetPostByAuthor finds a post by id, but only under the given author's
// username. A matching id with a different author is not found.
func (r *GormPostRepository) GetPostByAuthor(ctx context.Context, username string, id uint) (*models.Post, error) {
	var post models.Post
	err := withRelations(r.db.WithContext(ctx)).
		Joins("JOIN users ON users.id = posts.author_id").
		Where("posts.id = ? AND users.username = ?", id, username).
		First(&post).Error
	if err != nil {
		return nil, wrapNotFound(err, "post %d by %q", id, username)
	}
	return &post, nil
}

// UpdatePost writes the mutable columns. created_at and author_id are never touched.
func (r *GormPostRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", post.ID).
		Updates(map[string]interface{}{
			"text":     post.Text,
			"group_id": post.GroupID,
			"image":    post.Image,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("post %d: %w", post.ID, apperr.ErrNotFound)
	}
	return nil
}

// ListPosts returns one window of the filtered posts, newest first, and the
// size of the whole filtered set.
func (r *GormPostRepository) ListPosts(ctx context.Context, filter PostFilter, offset, limit int) ([]models.Post, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := filter.apply(db.Model(&models.Post{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	posts := []models.Post{}
	if total == 0 {
		return posts, 0, nil
	}

	err := filter.apply(withRelations(db)).
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// ImageKeys lists the media keys of the author's posts that carry an image.
func (r *GormPostRepository) ImageKeys(ctx context.Context, authorID uint) ([]string, error) {
	keys := []string{}
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("author_id = ? AND image <> ''", authorID).
		Order("id").
		Pluck("image", &keys).Error
	return keys, err
}

var _ PostRepository = (*GormPostRepository)(nil)
