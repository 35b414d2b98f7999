package services_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/yatube/backend/internal/apperr"
	"github.com/anonto42/yatube/backend/internal/services"
	"github.com/anonto42/yatube/backend/internal/testutil"
)

func TestHomeFeedIsNewestFirst(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	leo := testutil.CreateUser(t, e.db, "leo")

	var ids []uint
	for i := 1; i <= 3; i++ {
		p, err := e.content.CreatePost(ctx, leo.ID, services.NewPost{Text: fmt.Sprintf("post %d", i)})
		require.NoError(t, err)
		ids = append([]uint{p.ID}, ids...)
	}

	page, err := e.feeds.BuildFeed(ctx, services.HomeFeed(), 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	for i, p := range page.Items {
		assert.Equal(t, ids[i], p.ID)
	}
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.False(t, page.IsEmpty)
	assert.False(t, page.HasNext)
	assert.False(t, page.HasPrevious)
}

func TestFeedPagination(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	leo := testutil.CreateUser(t, e.db, "leo")
	for i := 0; i < 13; i++ {
		_, err := e.content.CreatePost(ctx, leo.ID, services.NewPost{Text: fmt.Sprintf("post %d", i)})
		require.NoError(t, err)
	}

	first, err := e.feeds.BuildFeed(ctx, services.HomeFeed(), 1)
	require.NoError(t, err)
	assert.Len(t, first.Items, 10)
	assert.Equal(t, 2, first.TotalPages)
	assert.Equal(t, int64(13), first.TotalCount)
	assert.True(t, first.HasNext)

	second, err := e.feeds.BuildFeed(ctx, services.HomeFeed(), 2)
	require.NoError(t, err)
	assert.Len(t, second.Items, 3)
	assert.True(t, second.HasPrevious)
	assert.False(t, second.HasNext)

	beyond, err := e.feeds.BuildFeed(ctx, services.HomeFeed(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, beyond.Number)
	assert.Equal(t, second.Items, beyond.Items)

	below, err := e.feeds.BuildFeed(ctx, services.HomeFeed(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, below.Number)
}

func TestFeedClampWithSinglePost(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	leo := testutil.CreateUser(t, e.db, "leo")
	_, err := e.content.CreatePost(ctx, leo.ID, services.NewPost{Text: "only"})
	require.NoError(t, err)

	one, err := e.feeds.BuildFeed(ctx, services.HomeFeed(), 1)
	require.NoError(t, err)
	five, err := e.feeds.BuildFeed(ctx, services.HomeFeed(), 5)
	require.NoError(t, err)

	assert.Equal(t, one.Items, five.Items)
	assert.Equal(t, 1, five.Number)
	assert.Len(t, five.Items, 1)
}

func TestGroupFeedIsolation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	leo := testutil.CreateUser(t, e.db, "leo")
	g1 := testutil.CreateGroup(t, e.db, "One", "one")
	g2 := testutil.CreateGroup(t, e.db, "Two", "two")

	inG1, err := e.content.CreatePost(ctx, leo.ID, services.NewPost{Text: "in one", GroupID: &g1.ID})
	require.NoError(t, err)
	_, err = e.content.CreatePost(ctx, leo.ID, services.NewPost{Text: "in two", GroupID: &g2.ID})
	require.NoError(t, err)

	page, err := e.feeds.BuildFeed(ctx, services.GroupFeed("two"), 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.NotEqual(t, inG1.ID, page.Items[0].ID)
	assert.Equal(t, g2.ID, page.Group.ID)

	_, err = e.feeds.BuildFeed(ctx, services.GroupFeed("missing"), 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestProfileFeed(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	leo := testutil.CreateUser(t, e.db, "leo")
	anna := testutil.CreateUser(t, e.db, "anna")
	_, err := e.content.CreatePost(ctx, leo.ID, services.NewPost{Text: "by leo"})
	require.NoError(t, err)
	_, err = e.content.CreatePost(ctx, anna.ID, services.NewPost{Text: "by anna"})
	require.NoError(t, err)

	page, err := e.feeds.BuildFeed(ctx, services.ProfileFeed("anna"), 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "by anna", page.Items[0].Text)
	assert.Equal(t, anna.ID, page.Author.ID)

	_, err = e.feeds.BuildFeed(ctx, services.ProfileFeed("nobody"), 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFollowingFeed(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	leo := testutil.CreateUser(t, e.db, "leo")
	anna := testutil.CreateUser(t, e.db, "anna")
	bob := testutil.CreateUser(t, e.db, "bob")

	empty, err := e.feeds.BuildFeed(ctx, services.FollowingFeed(leo.ID), 1)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty)
	assert.Empty(t, empty.Items)
	assert.Equal(t, 1, empty.TotalPages)

	_, err = e.follows.Follow(ctx, leo.ID, "anna")
	require.NoError(t, err)

	stillEmpty, err := e.feeds.BuildFeed(ctx, services.FollowingFeed(leo.ID), 1)
	require.NoError(t, err)
	assert.True(t, stillEmpty.IsEmpty, "followed authors without posts still give an empty feed")

	_, err = e.content.CreatePost(ctx, anna.ID, services.NewPost{Text: "by anna"})
	require.NoError(t, err)
	_, err = e.content.CreatePost(ctx, bob.ID, services.NewPost{Text: "by bob"})
	require.NoError(t, err)

	page, err := e.feeds.BuildFeed(ctx, services.FollowingFeed(leo.ID), 1)
	require.NoError(t, err)
	assert.False(t, page.IsEmpty)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "by anna", page.Items[0].Text)

	bobs, err := e.feeds.BuildFeed(ctx, services.FollowingFeed(bob.ID), 1)
	require.NoError(t, err)
	assert.True(t, bobs.IsEmpty)
}
