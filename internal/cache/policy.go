package cache

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/anonto42/yatube/backend/pkg/log"
)

// Route names of the cached views.
const (
	RouteIndex       = "index"
	RouteGroupList   = "group_list"
	RouteGroupPosts  = "group_posts"
	RoutePost        = "post"
	RouteFollowIndex = "follow_index"
)

const keyPrefix = "page:"

// TTLs is the lifetime of a cached page per route.
type TTLs struct {
	Index       time.Duration
	GroupList   time.Duration
	GroupPosts  time.Duration
	Post        time.Duration
	FollowIndex time.Duration
}

// Policy describes how one route is cached.
type Policy struct {
	Route string
	TTL   time.Duration
	// PerUser routes add the requesting user to the key, so one user's
	// page is never served to another.
	PerUser bool
}

// Key builds "page:<route>:<k=v,...>:u<user>:p<page>". Params are sorted by
// name; the user segment is present only when userID is non-zero.
func Key(route string, params map[string]string, userID uint, page int) string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, k := range names {
		pairs = append(pairs, k+"="+params[k])
	}

	var b strings.Builder
	b.WriteString(RoutePrefix(route))
	b.WriteString(strings.Join(pairs, ","))
	if userID != 0 {
		b.WriteString(":u")
		b.WriteString(strconv.FormatUint(uint64(userID), 10))
	}
	b.WriteString(":p")
	b.WriteString(strconv.Itoa(page))
	return b.String()
}

// RoutePrefix is the common prefix of every key of the route.
func RoutePrefix(route string) string {
	return keyPrefix + route + ":"
}

// Pages applies the per-route policies on top of a Store. Store failures
// are logged and reported as misses, so a broken cache never fails a request.
type Pages struct {
	store             Store
	policies          map[string]Policy
	invalidateOnWrite bool
}

func NewPages(store Store, ttls TTLs, invalidateOnWrite bool) *Pages {
	return &Pages{
		store: store,
		policies: map[string]Policy{
			RouteIndex:       {Route: RouteIndex, TTL: ttls.Index},
			RouteGroupList:   {Route: RouteGroupList, TTL: ttls.GroupList},
			RouteGroupPosts:  {Route: RouteGroupPosts, TTL: ttls.GroupPosts},
			RoutePost:        {Route: RoutePost, TTL: ttls.Post},
			RouteFollowIndex: {Route: RouteFollowIndex, TTL: ttls.FollowIndex, PerUser: true},
		},
		invalidateOnWrite: invalidateOnWrite,
	}
}

// Route returns the policy of a cached route.
func (p *Pages) Route(route string) (Policy, bool) {
	pol, ok := p.policies[route]
	return pol, ok
}

func (p *Pages) Lookup(ctx context.Context, key string) ([]byte, bool) {
	body, ok, err := p.store.Get(ctx, key)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldCache, key).Msg("cache read failed")
		return nil, false
	}
	return body, ok
}

func (p *Pages) Save(ctx context.Context, key string, body []byte, ttl time.Duration) {
	if err := p.store.Set(ctx, key, body, ttl); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldCache, key).Msg("cache write failed")
	}
}

// InvalidateOnWrite reports whether writes purge cached pages.
func (p *Pages) InvalidateOnWrite() bool {
	return p.invalidateOnWrite
}

// Invalidate drops every cached page of the routes. It does nothing unless
// the cache runs in invalidate-on-write mode; in TTL-only mode pages age out.
func (p *Pages) Invalidate(ctx context.Context, routes ...string) {
	if !p.invalidateOnWrite {
		return
	}
	for _, route := range routes {
		if err := p.store.DeletePrefix(ctx, RoutePrefix(route)); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldRoute, route).Msg("cache invalidation failed")
		}
	}
}
