package services

import (
	"context"

	"github.com/anonto42/yatube/backend/internal/events"
	"github.com/anonto42/yatube/backend/internal/models"
	"github.com/anonto42/yatube/backend/internal/repositories"
	"github.com/anonto42/yatube/backend/pkg/log"
)

// Profile is what the profile page shows besides the feed.
type Profile struct {
	Author         *models.User
	Following      bool
	FollowersCount int64
	FollowingCount int64
}

// FollowService resolves usernames for the follow graph.
type FollowService struct {
	users     repositories.UserRepository
	follows   repositories.FollowRepository
	publisher events.Publisher
}

func NewFollowService(users repositories.UserRepository, follows repositories.FollowRepository, publisher events.Publisher) *FollowService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &FollowService{users: users, follows: follows, publisher: publisher}
}

// Follow subscribes userID to the author. Following oneself or an author
// already followed changes nothing and is not an error.
func (s *FollowService) Follow(ctx context.Context, userID uint, username string) (*models.User, error) {
	author, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	created, err := s.follows.Follow(ctx, userID, author.ID)
	if err != nil {
		return nil, err
	}
	if created {
		s.publish(ctx, events.SubjectFollowCreated, events.FollowEvent{UserID: userID, AuthorID: author.ID})
	}
	return author, nil
}

// Unfollow removes the subscription. A missing edge is apperr.ErrNotFound.
func (s *FollowService) Unfollow(ctx context.Context, userID uint, username string) (*models.User, error) {
	author, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.follows.Unfollow(ctx, userID, author.ID); err != nil {
		return nil, err
	}
	s.publish(ctx, events.SubjectFollowDeleted, events.FollowEvent{UserID: userID, AuthorID: author.ID})
	return author, nil
}

func (s *FollowService) IsFollowing(ctx context.Context, userID, authorID uint) (bool, error) {
	return s.follows.IsFollowing(ctx, userID, authorID)
}

func (s *FollowService) FollowedAuthorIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.follows.FollowedAuthorIDs(ctx, userID)
}

// Profile collects the follow data of a profile page. viewerID is zero for
// anonymous visitors; Following is false for them and on one's own profile.
func (s *FollowService) Profile(ctx context.Context, author *models.User, viewerID uint) (*Profile, error) {
	p := &Profile{Author: author}

	var err error
	if viewerID != 0 && viewerID != author.ID {
		if p.Following, err = s.follows.IsFollowing(ctx, viewerID, author.ID); err != nil {
			return nil, err
		}
	}
	if p.FollowersCount, err = s.follows.FollowersCount(ctx, author.ID); err != nil {
		return nil, err
	}
	if p.FollowingCount, err = s.follows.FollowingCount(ctx, author.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *FollowService) publish(ctx context.Context, subject string, event interface{}) {
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}
