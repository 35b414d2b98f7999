package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/anonto42/yatube/backend/internal/apperr"
	"github.com/anonto42/yatube/backend/internal/events"
	"github.com/anonto42/yatube/backend/internal/models"
	"github.com/anonto42/yatube/backend/internal/repositories"
	"github.com/anonto42/yatube/backend/pkg/log"
	"github.com/anonto42/yatube/backend/pkg/storage"
	"github.com/anonto42/yatube/backend/validators"
)

const (
	msgRequired     = "This field is required."
	msgInvalidGroup = "Select a valid choice. That choice is not one of the available choices."
	msgInvalidImage = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	msgSlugTaken    = "Group with this Slug already exists."
)

// ImageUpload is an uploaded file as received from the form.
type ImageUpload struct {
	Filename string
	Data     []byte
}

type NewPost struct {
	Text    string
	GroupID *uint
	Image   *ImageUpload
}

// PostUpdate lists the fields to change; nil fields are left alone.
// ClearGroup detaches the post from its group and wins over GroupID.
type PostUpdate struct {
	Text       *string
	GroupID    *uint
	ClearGroup bool
	Image      *ImageUpload
}

// ContentService owns groups, posts and comments and the rules around them.
type ContentService struct {
	users     repositories.UserRepository
	groups    repositories.GroupRepository
	posts     repositories.PostRepository
	comments  repositories.CommentRepository
	media     storage.Storage
	publisher events.Publisher
	validate  *validator.Validate
	now       func() time.Time
}

// NewContentService wires the service. A nil clock means time.Now and a nil
// publisher discards events.
func NewContentService(
	users repositories.UserRepository,
	groups repositories.GroupRepository,
	posts repositories.PostRepository,
	comments repositories.CommentRepository,
	media storage.Storage,
	publisher events.Publisher,
	now func() time.Time,
) *ContentService {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ContentService{
		users:     users,
		groups:    groups,
		posts:     posts,
		comments:  comments,
		media:     media,
		publisher: publisher,
		validate:  validators.New(),
		now:       now,
	}
}

// CreatePost validates and stores a new post written by authorID. All field
// problems are reported together.
func (s *ContentService) CreatePost(ctx context.Context, authorID uint, in NewPost) (*models.Post, error) {
	verr := &apperr.ValidationError{}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		verr.Add("text", msgRequired)
	}
	if in.GroupID != nil {
		if err := s.checkGroup(ctx, *in.GroupID, verr); err != nil {
			return nil, err
		}
	}
	if in.Image != nil {
		checkImage(in.Image, verr)
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	post := &models.Post{
		Text:      text,
		CreatedAt: s.now().UTC(),
		AuthorID:  authorID,
		GroupID:   in.GroupID,
	}
	if in.Image != nil {
		key, err := s.storeImage(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		post.Image = key
	}

	if err := s.posts.CreatePost(ctx, post); err != nil {
		s.dropImage(ctx, post.Image)
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	created, err := s.posts.GetPostByID(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.SubjectPostCreated, postEvent(created))
	return created, nil
}

// UpdatePost applies a partial update. Only the author may edit a post and
// created_at never changes.
func (s *ContentService) UpdatePost(ctx context.Context, postID, requesterID uint, upd PostUpdate) (*models.Post, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != requesterID {
		return nil, fmt.Errorf("post %d: %w", postID, apperr.ErrPermission)
	}

	verr := &apperr.ValidationError{}
	if upd.Text != nil {
		text := strings.TrimSpace(*upd.Text)
		if text == "" {
			verr.Add("text", msgRequired)
		}
		post.Text = text
	}
	switch {
	case upd.ClearGroup:
		post.GroupID = nil
	case upd.GroupID != nil:
		if err := s.checkGroup(ctx, *upd.GroupID, verr); err != nil {
			return nil, err
		}
		post.GroupID = upd.GroupID
	}
	if upd.Image != nil {
		checkImage(upd.Image, verr)
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	oldImage := post.Image
	if upd.Image != nil {
		key, err := s.storeImage(ctx, upd.Image)
		if err != nil {
			return nil, err
		}
		post.Image = key
	}

	if err := s.posts.UpdatePost(ctx, post); err != nil {
		if post.Image != oldImage {
			s.dropImage(ctx, post.Image)
		}
		return nil, fmt.Errorf("failed to update post %d: %w", postID, err)
	}
	if post.Image != oldImage {
		s.dropImage(ctx, oldImage)
	}

	updated, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.SubjectPostUpdated, postEvent(updated))
	return updated, nil
}

// CreateComment adds a comment by authorID, the requesting user, to a post.
func (s *ContentService) CreateComment(ctx context.Context, postID, authorID uint, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Invalid("text", msgRequired)
	}
	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:    postID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	author, err := s.users.GetUserByID(ctx, authorID)
	if err != nil {
		return nil, err
	}
	comment.Author = author

	s.publish(ctx, events.SubjectCommentCreated, events.CommentEvent{
		ID:        comment.ID,
		PostID:    comment.PostID,
		AuthorID:  comment.AuthorID,
		CreatedAt: comment.CreatedAt,
	})
	return comment, nil
}

// GetPost looks a post up by id under its author's username. The pair must match.
func (s *ContentService) GetPost(ctx context.Context, username string, postID uint) (*models.Post, error) {
	return s.posts.GetPostByAuthor(ctx, username, postID)
}

func (s *ContentService) ListPosts(ctx context.Context, filter repositories.PostFilter, offset, limit int) ([]models.Post, int64, error) {
	return s.posts.ListPosts(ctx, filter, offset, limit)
}

func (s *ContentService) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	return s.comments.ListComments(ctx, postID)
}

func (s *ContentService) CreateGroup(ctx context.Context, req models.CreateGroupRequest) (*models.Group, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Slug = strings.TrimSpace(req.Slug)
	if err := validators.ToValidationError(s.validate.Struct(req)); err != nil {
		return nil, err
	}

	_, err := s.groups.GetGroupBySlug(ctx, req.Slug)
	switch {
	case err == nil:
		return nil, apperr.Invalid("slug", msgSlugTaken)
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	group := &models.Group{Title: req.Title, Slug: req.Slug, Description: req.Description}
	if err := s.groups.CreateGroup(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

func (s *ContentService) ListGroups(ctx context.Context) ([]models.Group, error) {
	return s.groups.ListGroups(ctx)
}

// DeleteGroup removes a group; its posts stay, without a group.
func (s *ContentService) DeleteGroup(ctx context.Context, slug string) error {
	return s.groups.DeleteGroup(ctx, slug)
}

// DeleteUser removes a user with their posts, the comments on those posts,
// their own comments and their follow edges. Post images are deleted once
// the rows are gone.
func (s *ContentService) DeleteUser(ctx context.Context, userID uint) error {
	images, err := s.posts.ImageKeys(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list images of user %d: %w", userID, err)
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return err
	}
	for _, key := range images {
		s.dropImage(ctx, key)
	}
	return nil
}

func (s *ContentService) checkGroup(ctx context.Context, groupID uint, verr *apperr.ValidationError) error {
	_, err := s.groups.GetGroupByID(ctx, groupID)
	if errors.Is(err, apperr.ErrNotFound) {
		verr.Add("group", msgInvalidGroup)
		return nil
	}
	return err
}

func checkImage(img *ImageUpload, verr *apperr.ValidationError) {
	if _, err := imaging.Decode(bytes.NewReader(img.Data)); err != nil {
		verr.Add("image", msgInvalidImage)
	}
}

// storeImage writes a validated upload to media storage under posts/<uuid><ext>.
func (s *ContentService) storeImage(ctx context.Context, img *ImageUpload) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return "", apperr.Invalid("image", msgInvalidImage)
	}

	ext := strings.ToLower(filepath.Ext(img.Filename))
	if _, err := imaging.FormatFromExtension(ext); err != nil {
		ext = "." + format
	}

	key := "posts/" + uuid.New().String() + ext
	if err := s.media.Write(ctx, key, bytes.NewReader(img.Data), int64(len(img.Data)), "image/"+format); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return key, nil
}

func (s *ContentService) dropImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.media.Delete(ctx, key); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("key", key).Msg("failed to delete image")
	}
}

func (s *ContentService) publish(ctx context.Context, subject string, event interface{}) {
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}

func postEvent(p *models.Post) events.PostEvent {
	return events.PostEvent{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		GroupID:   p.GroupID,
		Text:      p.Text,
		Image:     p.Image,
		CreatedAt: p.CreatedAt,
	}
}
