package services

import (
	"context"

	"github.com/anonto42/yatube/backend/internal/models"
	"github.com/anonto42/yatube/backend/internal/repositories"
)

type FeedKind int

const (
	FeedHome FeedKind = iota
	FeedGroup
	FeedProfile
	FeedFollowing
)

// Feed names the set of posts a page is cut from.
type Feed struct {
	Kind     FeedKind
	Slug     string
	Username string
	UserID   uint
}

func HomeFeed() Feed                   { return Feed{Kind: FeedHome} }
func GroupFeed(slug string) Feed       { return Feed{Kind: FeedGroup, Slug: slug} }
func ProfileFeed(username string) Feed { return Feed{Kind: FeedProfile, Username: username} }
func FollowingFeed(userID uint) Feed   { return Feed{Kind: FeedFollowing, UserID: userID} }

// Page is one page of a feed. Items carry author, group and comment count.
type Page struct {
	Items       []models.Post
	Number      int
	Size        int
	TotalPages  int
	TotalCount  int64
	IsEmpty     bool
	HasNext     bool
	HasPrevious bool

	// Group is set for group feeds, Author for profile feeds.
	Group  *models.Group
	Author *models.User
}

type FeedService struct {
	posts    repositories.PostRepository
	groups   repositories.GroupRepository
	users    repositories.UserRepository
	follows  repositories.FollowRepository
	pageSize int
}

func NewFeedService(
	posts repositories.PostRepository,
	groups repositories.GroupRepository,
	users repositories.UserRepository,
	follows repositories.FollowRepository,
	pageSize int,
) *FeedService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &FeedService{posts: posts, groups: groups, users: users, follows: follows, pageSize: pageSize}
}

// BuildFeed returns the requested page of a feed, newest first. Out of range
// page numbers resolve to the last page instead of failing.
func (s *FeedService) BuildFeed(ctx context.Context, feed Feed, page int) (*Page, error) {
	result := &Page{Size: s.pageSize}

	var filter repositories.PostFilter
	switch feed.Kind {
	case FeedGroup:
		group, err := s.groups.GetGroupBySlug(ctx, feed.Slug)
		if err != nil {
			return nil, err
		}
		result.Group = group
		filter = repositories.ByGroup(group.ID)
	case FeedProfile:
		author, err := s.users.GetUserByUsername(ctx, feed.Username)
		if err != nil {
			return nil, err
		}
		result.Author = author
		filter = repositories.ByAuthor(author.ID)
	case FeedFollowing:
		ids, err := s.follows.FollowedAuthorIDs(ctx, feed.UserID)
		if err != nil {
			return nil, err
		}
		filter = repositories.ByAuthorSet(ids)
	default:
		filter = repositories.AllPosts()
	}

	requested := page
	if requested < 1 {
		requested = 1
	}
	items, total, err := s.posts.ListPosts(ctx, filter, (requested-1)*s.pageSize, s.pageSize)
	if err != nil {
		return nil, err
	}

	pages := totalPages(total, s.pageSize)
	number := clampPage(page, pages)
	if number != requested {
		items, total, err = s.posts.ListPosts(ctx, filter, (number-1)*s.pageSize, s.pageSize)
		if err != nil {
			return nil, err
		}
		pages = totalPages(total, s.pageSize)
	}

	result.Items = items
	result.Number = number
	result.TotalPages = pages
	result.TotalCount = total
	result.IsEmpty = total == 0
	result.HasNext = number < pages
	result.HasPrevious = number > 1
	return result, nil
}
