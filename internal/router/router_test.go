package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/anonto42/yatube/backend/internal/cache"
	"github.com/anonto42/yatube/backend/internal/events"
	"github.com/anonto42/yatube/backend/internal/middleware"
	"github.com/anonto42/yatube/backend/internal/models"
	"github.com/anonto42/yatube/backend/internal/router"
	"github.com/anonto42/yatube/backend/internal/testutil"
	"github.com/anonto42/yatube/backend/pkg/config"
	"github.com/anonto42/yatube/backend/pkg/storage"
)

const testSecret = "test-secret"

type pageResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Posts     []models.Post    `json:"posts"`
		Post      *models.Post     `json:"post"`
		Comments  []models.Comment `json:"comments"`
		Groups    []models.Group   `json:"groups"`
		IsEmpty   bool             `json:"is_empty"`
		Following bool             `json:"following"`
		Followers int64            `json:"followers_count"`
	} `json:"data"`
	Meta struct {
		CurrentPage int   `json:"currentPage"`
		TotalPages  int   `json:"totalPages"`
		TotalItems  int64 `json:"totalItems"`
	} `json:"meta"`
	Errors map[string]string `json:"errors"`
}

type form struct {
	fields map[string]string
	image  []byte
}

type RouterSuite struct {
	suite.Suite

	db       *gorm.DB
	e        *echo.Echo
	media    *storage.LocalStorage
	firebase middleware.TokenVerifier

	leo  *models.User
	anna *models.User
	bob  *models.User
	cats *models.Group
	dogs *models.Group
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.firebase = nil
	s.build(false)

	s.leo = testutil.CreateUser(s.T(), s.db, "leo")
	s.anna = testutil.CreateUser(s.T(), s.db, "anna")
	s.bob = testutil.CreateUser(s.T(), s.db, "bob")
	s.cats = testutil.CreateGroup(s.T(), s.db, "Cats", "cats")
	s.dogs = testutil.CreateGroup(s.T(), s.db, "Dogs", "dogs")
}

// build (re)creates the echo instance over the suite database.
func (s *RouterSuite) build(invalidateOnWrite bool) {
	cfg := &config.Config{}
	cfg.Server.PageSize = 10
	cfg.Server.MaxUploadBytes = 1 << 20
	cfg.Cache.InvalidateOnWrite = invalidateOnWrite
	cfg.Cache.TTL = config.CacheTTLConfig{
		Index:       5 * time.Second,
		GroupList:   5 * time.Second,
		GroupPosts:  5 * time.Second,
		Post:        5 * time.Second,
		FollowIndex: 40 * time.Second,
	}
	cfg.Auth = config.AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour, LoginURL: "/auth/login/"}

	media, err := storage.NewLocalStorage(s.T().TempDir())
	s.Require().NoError(err)
	s.media = media

	pageStore := cache.NewMemoryStore()
	s.T().Cleanup(func() { _ = pageStore.Close() })

	e, err := router.New(router.Dependencies{
		Config:    cfg,
		DB:        s.db,
		Media:     media,
		Cache:     pageStore,
		Publisher: events.Nop{},
		Firebase:  s.firebase,
		Now:       testutil.NewClock().Now,
	}, zerolog.Nop())
	s.Require().NoError(err)
	s.e = e
}

func (s *RouterSuite) token(user *models.User) string {
	claims := &models.JwtCustomClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	s.Require().NoError(err)
	return signed
}

func (s *RouterSuite) do(method, path string, body io.Reader, contentType string, user *models.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if user != nil {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token(user))
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) get(path string, user *models.User) *httptest.ResponseRecorder {
	return s.do(http.MethodGet, path, nil, "", user)
}

func (s *RouterSuite) postForm(path string, f form, user *models.User) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range f.fields {
		s.Require().NoError(w.WriteField(k, v))
	}
	if f.image != nil {
		part, err := w.CreateFormFile("image", "small.gif")
		s.Require().NoError(err)
		_, err = part.Write(f.image)
		s.Require().NoError(err)
	}
	s.Require().NoError(w.Close())
	return s.do(http.MethodPost, path, &buf, w.FormDataContentType(), user)
}

func (s *RouterSuite) postJSON(path string, body interface{}, user *models.User) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	s.Require().NoError(err)
	return s.do(http.MethodPost, path, bytes.NewReader(data), echo.MIMEApplicationJSON, user)
}

func (s *RouterSuite) decode(rec *httptest.ResponseRecorder) pageResponse {
	var resp pageResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func (s *RouterSuite) postPath(p *models.Post, author *models.User) string {
	return "/" + author.Username + "/" + strconv.FormatUint(uint64(p.ID), 10) + "/"
}

func (s *RouterSuite) TestPublicPagesRespond() {
	post := testutil.CreatePost(s.T(), s.db, s.leo, s.cats, "hello", time.Now().UTC())

	for _, path := range []string{"/", "/group/", "/group/cats/", "/leo/", s.postPath(post, s.leo), "/health", "/auth/login/"} {
		rec := s.get(path, nil)
		s.Equal(http.StatusOK, rec.Code, path)
	}
}

func (s *RouterSuite) TestAnonymousIsRedirectedToLogin() {
	post := testutil.CreatePost(s.T(), s.db, s.leo, nil, "hello", time.Now().UTC())

	for _, path := range []string{"/new/", "/follow/", s.postPath(post, s.leo) + "edit/", "/leo/follow/", "/leo/unfollow/"} {
		rec := s.get(path, nil)
		s.Equal(http.StatusFound, rec.Code, path)
		s.Equal("/auth/login/?next="+strings.ReplaceAll(path, "/", "%2F"), rec.Header().Get(echo.HeaderLocation), path)
	}

	rec := s.postForm("/new/", form{fields: map[string]string{"text": "sneaky"}}, nil)
	s.Equal(http.StatusFound, rec.Code)
	var count int64
	s.Require().NoError(s.db.Model(&models.Post{}).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *RouterSuite) TestUnknownObjectsAre404() {
	post := testutil.CreatePost(s.T(), s.db, s.leo, nil, "hello", time.Now().UTC())

	for _, path := range []string{"/group/missing/", "/nobody/", "/leo/999/", "/leo/abc/", s.postPath(post, s.anna), "/media/posts/none.gif"} {
		rec := s.get(path, nil)
		s.Equal(http.StatusNotFound, rec.Code, path)
	}
}

func (s *RouterSuite) TestCreatePost() {
	rec := s.postForm("/new/", form{
		fields: map[string]string{"text": "New post", "group": strconv.FormatUint(uint64(s.cats.ID), 10)},
		image:  testutil.SmallGIF,
	}, s.leo)
	s.Require().Equal(http.StatusFound, rec.Code, rec.Body.String())
	s.Equal("/", rec.Header().Get(echo.HeaderLocation))

	resp := s.decode(s.get("/", nil))
	s.Require().Len(resp.Data.Posts, 1)
	post := resp.Data.Posts[0]
	s.Equal("New post", post.Text)
	s.Equal("leo", post.Author.Username)
	s.Equal("cats", post.Group.Slug)
	s.NotEmpty(post.Image)

	inGroup := s.decode(s.get("/group/cats/", nil))
	s.Len(inGroup.Data.Posts, 1)
	otherGroup := s.decode(s.get("/group/dogs/", nil))
	s.Empty(otherGroup.Data.Posts)

	img := s.get("/media/"+post.Image, nil)
	s.Equal(http.StatusOK, img.Code)
	s.Equal("image/gif", img.Header().Get(echo.HeaderContentType))
	s.Equal(testutil.SmallGIF, img.Body.Bytes())
}

func (s *RouterSuite) TestCreatePostValidation() {
	rec := s.postForm("/new/", form{fields: map[string]string{"text": "  ", "group": "999"}}, s.leo)
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	resp := s.decode(rec)
	s.Contains(resp.Errors, "text")
	s.Contains(resp.Errors, "group")

	rec = s.postForm("/new/", form{fields: map[string]string{"text": "bad image"}, image: []byte("not a gif")}, s.leo)
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.Contains(s.decode(rec).Errors, "image")
}

func (s *RouterSuite) TestTTLOnlyCacheServesStaleIndex() {
	first := s.get("/", nil)
	s.Require().Equal(http.StatusOK, first.Code)
	s.Equal("MISS", first.Header().Get(middleware.HeaderCache))

	rec := s.postForm("/new/", form{fields: map[string]string{"text": "fresh"}}, s.leo)
	s.Require().Equal(http.StatusFound, rec.Code)

	second := s.get("/", nil)
	s.Equal("HIT", second.Header().Get(middleware.HeaderCache))
	s.Equal(first.Body.Bytes(), second.Body.Bytes(), "within the TTL the stored page is served")
	s.Empty(s.decode(second).Data.Posts)

	// A different page number is a different key.
	other := s.get("/?page=2", nil)
	s.Equal("MISS", other.Header().Get(middleware.HeaderCache))
}

func (s *RouterSuite) TestInvalidateOnWriteShowsNewPostImmediately() {
	s.build(true)

	first := s.get("/", nil)
	s.Require().Equal(http.StatusOK, first.Code)

	rec := s.postForm("/new/", form{fields: map[string]string{"text": "fresh"}}, s.leo)
	s.Require().Equal(http.StatusFound, rec.Code)

	second := s.get("/", nil)
	s.Equal("MISS", second.Header().Get(middleware.HeaderCache))
	resp := s.decode(second)
	s.Require().Len(resp.Data.Posts, 1)
	s.Equal("fresh", resp.Data.Posts[0].Text)
}

func (s *RouterSuite) TestPaginationQuery() {
	testutil.CreatePost(s.T(), s.db, s.leo, nil, "only", time.Now().UTC())

	for _, q := range []string{"", "?page=abc", "?page=5", "?page=0"} {
		resp := s.decode(s.get("/"+q, nil))
		s.Equal(1, resp.Meta.CurrentPage, q)
		s.Equal(1, resp.Meta.TotalPages, q)
		s.Equal(int64(1), resp.Meta.TotalItems, q)
		s.Len(resp.Data.Posts, 1, q)
	}
}

func (s *RouterSuite) TestEditByNonAuthorRedirects() {
	post := testutil.CreatePost(s.T(), s.db, s.leo, s.cats, "original", time.Now().UTC())
	editPath := s.postPath(post, s.leo) + "edit/"

	rec := s.get(editPath, s.anna)
	s.Equal(http.StatusFound, rec.Code)
	s.Equal(s.postPath(post, s.leo), rec.Header().Get(echo.HeaderLocation))

	rec = s.postForm(editPath, form{fields: map[string]string{"text": "hijacked"}}, s.anna)
	s.Equal(http.StatusFound, rec.Code)
	s.Equal(s.postPath(post, s.leo), rec.Header().Get(echo.HeaderLocation))

	var stored models.Post
	s.Require().NoError(s.db.First(&stored, post.ID).Error)
	s.Equal("original", stored.Text)
}

func (s *RouterSuite) TestEditByAuthor() {
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	post := testutil.CreatePost(s.T(), s.db, s.leo, s.cats, "original", created)
	editPath := s.postPath(post, s.leo) + "edit/"

	rec := s.get(editPath, s.leo)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("original", s.decode(rec).Data.Post.Text)

	rec = s.postForm(editPath, form{fields: map[string]string{
		"text":  "edited",
		"group": strconv.FormatUint(uint64(s.dogs.ID), 10),
	}}, s.leo)
	s.Require().Equal(http.StatusFound, rec.Code, rec.Body.String())
	s.Equal(s.postPath(post, s.leo), rec.Header().Get(echo.HeaderLocation))

	var stored models.Post
	s.Require().NoError(s.db.First(&stored, post.ID).Error)
	s.Equal("edited", stored.Text)
	s.Require().NotNil(stored.GroupID)
	s.Equal(s.dogs.ID, *stored.GroupID)
	s.True(created.Equal(stored.CreatedAt))

	// Submitting without a group detaches the post.
	rec = s.postForm(editPath, form{fields: map[string]string{"text": "edited"}}, s.leo)
	s.Require().Equal(http.StatusFound, rec.Code)
	s.Require().NoError(s.db.First(&stored, post.ID).Error)
	s.Nil(stored.GroupID)
}

func (s *RouterSuite) TestCommentAuthorIsRequestingUser() {
	post := testutil.CreatePost(s.T(), s.db, s.leo, nil, "post", time.Now().UTC())
	commentPath := s.postPath(post, s.leo) + "comment"

	rec := s.postForm(commentPath, form{fields: map[string]string{"text": "nice"}}, s.anna)
	s.Require().Equal(http.StatusFound, rec.Code, rec.Body.String())
	s.Equal(s.postPath(post, s.leo), rec.Header().Get(echo.HeaderLocation))

	resp := s.decode(s.get(s.postPath(post, s.leo), nil))
	s.Require().Len(resp.Data.Comments, 1)
	s.Equal("anna", resp.Data.Comments[0].Author.Username)
	s.Equal(int64(1), resp.Data.Post.CommentCount)

	rec = s.get(commentPath, s.anna)
	s.Equal(http.StatusFound, rec.Code)

	rec = s.postForm(commentPath, form{fields: map[string]string{"text": ""}}, s.anna)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterSuite) TestFollowAndUnfollow() {
	testutil.CreatePost(s.T(), s.db, s.anna, nil, "by anna", time.Now().UTC())

	rec := s.get("/anna/follow/", s.leo)
	s.Require().Equal(http.StatusFound, rec.Code)
	s.Equal("/anna/", rec.Header().Get(echo.HeaderLocation))

	profile := s.decode(s.get("/anna/", s.leo))
	s.True(profile.Data.Following)
	s.Equal(int64(1), profile.Data.Followers)

	feed := s.decode(s.get("/follow/", s.leo))
	s.Require().Len(feed.Data.Posts, 1)
	s.Equal("by anna", feed.Data.Posts[0].Text)

	// Following twice and following oneself change nothing.
	s.Equal(http.StatusFound, s.get("/anna/follow/", s.leo).Code)
	s.Equal(http.StatusFound, s.get("/leo/follow/", s.leo).Code)
	var edges int64
	s.Require().NoError(s.db.Model(&models.Follow{}).Count(&edges).Error)
	s.Equal(int64(1), edges)

	rec = s.get("/anna/unfollow/", s.leo)
	s.Equal(http.StatusFound, rec.Code)
	s.Equal("/anna/", rec.Header().Get(echo.HeaderLocation))

	s.Equal(http.StatusNotFound, s.get("/anna/unfollow/", s.leo).Code)
	s.Equal(http.StatusNotFound, s.get("/nobody/follow/", s.leo).Code)
}

func (s *RouterSuite) TestFollowFeedCacheIsPerUser() {
	testutil.CreatePost(s.T(), s.db, s.anna, nil, "by anna", time.Now().UTC())
	testutil.Follow(s.T(), s.db, s.leo, s.anna)

	leoFeed := s.get("/follow/", s.leo)
	s.Require().Equal(http.StatusOK, leoFeed.Code)
	s.Len(s.decode(leoFeed).Data.Posts, 1)

	bobFeed := s.get("/follow/", s.bob)
	s.Require().Equal(http.StatusOK, bobFeed.Code)
	s.Equal("MISS", bobFeed.Header().Get(middleware.HeaderCache))
	resp := s.decode(bobFeed)
	s.True(resp.Data.IsEmpty)
	s.Empty(resp.Data.Posts)

	again := s.get("/follow/", s.leo)
	s.Equal("HIT", again.Header().Get(middleware.HeaderCache))
	s.Equal(leoFeed.Body.Bytes(), again.Body.Bytes())
}

func (s *RouterSuite) TestSignupAndLogin() {
	rec := s.postJSON("/auth/signup/", map[string]string{
		"username": "newbie",
		"email":    "newbie@example.com",
		"password": "long-enough-password",
	}, nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var signup struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &signup))
	s.NotEmpty(signup.Token)

	req := httptest.NewRequest(http.MethodGet, "/new/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signup.Token)
	withToken := httptest.NewRecorder()
	s.e.ServeHTTP(withToken, req)
	s.Equal(http.StatusOK, withToken.Code, "the issued token passes the auth gate")

	dup := s.postJSON("/auth/signup/", map[string]string{
		"username": "newbie",
		"email":    "other@example.com",
		"password": "long-enough-password",
	}, nil)
	s.Equal(http.StatusBadRequest, dup.Code)
	s.Contains(s.decode(dup).Errors, "username")

	bad := s.postJSON("/auth/login/", map[string]string{"email": "newbie@example.com", "password": "wrong"}, nil)
	s.Equal(http.StatusUnauthorized, bad.Code)

	good := s.postJSON("/auth/login/", map[string]string{"email": "newbie@example.com", "password": "long-enough-password"}, nil)
	s.Require().Equal(http.StatusOK, good.Code)
	s.NotEmpty(good.Result().Cookies())

	s.Equal(http.StatusServiceUnavailable, s.postJSON("/auth/firebase-login/", map[string]string{"idToken": "x"}, nil).Code)
}

func (s *RouterSuite) TestInvalidBearerTokenIsRejected() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-token")
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RouterSuite) TestDeleteProfile() {
	post := testutil.CreatePost(s.T(), s.db, s.leo, nil, "post", time.Now().UTC())
	testutil.CreateComment(s.T(), s.db, post, s.anna, "comment", time.Now().UTC())
	testutil.Follow(s.T(), s.db, s.anna, s.leo)

	rec := s.do(http.MethodDelete, "/auth/profile/", nil, "", s.leo)
	s.Require().Equal(http.StatusNoContent, rec.Code)

	s.Equal(http.StatusNotFound, s.get("/leo/", nil).Code)
	var posts, comments, follows int64
	s.Require().NoError(s.db.Model(&models.Post{}).Count(&posts).Error)
	s.Require().NoError(s.db.Model(&models.Comment{}).Count(&comments).Error)
	s.Require().NoError(s.db.Model(&models.Follow{}).Count(&follows).Error)
	s.Zero(posts)
	s.Zero(comments)
	s.Zero(follows)
}

func (s *RouterSuite) TestNotFoundNamesPath() {
	for _, path := range []string{"/nobody/", "/leo/999/", "/no/such/route/here/"} {
		rec := s.get(path, nil)
		s.Require().Equal(http.StatusNotFound, rec.Code, path)

		var body map[string]interface{}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal(path, body["path"], path)
		s.NotEmpty(body["message"], path)
	}
}

func (s *RouterSuite) TestDeletedAccountTokenIsAnonymous() {
	testutil.CreatePost(s.T(), s.db, s.anna, nil, "by anna", time.Now().UTC())
	s.Require().Equal(http.StatusNoContent, s.do(http.MethodDelete, "/auth/profile/", nil, "", s.leo).Code)

	rec := s.postForm("/new/", form{fields: map[string]string{"text": "ghost post"}}, s.leo)
	s.Equal(http.StatusFound, rec.Code)
	s.Equal("/auth/login/?next=%2Fnew%2F", rec.Header().Get(echo.HeaderLocation))

	for _, path := range []string{"/anna/follow/", "/follow/"} {
		rec := s.get(path, s.leo)
		s.Equal(http.StatusFound, rec.Code, path)
		s.True(strings.HasPrefix(rec.Header().Get(echo.HeaderLocation), "/auth/login/?next="), path)
	}

	// Public pages still render for the stale token.
	s.Equal(http.StatusOK, s.get("/", s.leo).Code)

	var posts, follows int64
	s.Require().NoError(s.db.Model(&models.Post{}).Count(&posts).Error)
	s.Require().NoError(s.db.Model(&models.Follow{}).Count(&follows).Error)
	s.Equal(int64(1), posts)
	s.Zero(follows)
}

// firebaseTokens maps an ID token to the identity Firebase vouches for.
type firebaseTokens map[string]*auth.Token

func (f firebaseTokens) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	token, ok := f[idToken]
	if !ok {
		return nil, errors.New("token rejected")
	}
	return token, nil
}

func (s *RouterSuite) TestFirebaseLoginLinksOnlyVerifiedEmail() {
	s.firebase = firebaseTokens{
		"unverified": {UID: "other-uid", Claims: map[string]interface{}{
			"email": "leo@example.com", "email_verified": false,
		}},
		"verified": {UID: "leo-uid", Claims: map[string]interface{}{
			"email": "leo@example.com", "email_verified": true,
		}},
		"newcomer": {UID: "new-uid", Claims: map[string]interface{}{
			"email": "anna@elsewhere.org", "email_verified": true, "name": "Anna B",
		}},
	}
	s.build(false)

	login := func(idToken string) *httptest.ResponseRecorder {
		return s.postJSON("/auth/firebase-login/", map[string]string{"idToken": idToken}, nil)
	}
	linkedUID := func(username string) *string {
		var user models.User
		s.Require().NoError(s.db.Where("username = ?", username).First(&user).Error)
		return user.FirebaseUID
	}

	rec := login("unverified")
	s.Equal(http.StatusBadRequest, rec.Code, rec.Body.String())
	s.Contains(s.decode(rec).Errors, "idToken")
	s.Nil(linkedUID("leo"), "an unverified email must not take over the account")

	s.Equal(http.StatusUnauthorized, login("forged").Code)

	rec = login("verified")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		User models.UserCompact `json:"user"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("leo", resp.User.Username)
	s.Require().NotNil(linkedUID("leo"))
	s.Equal("leo-uid", *linkedUID("leo"))

	// A second login finds the account by UID.
	s.Equal(http.StatusOK, login("verified").Code)

	rec = login("newcomer")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("anna1", resp.User.Username, "the taken username gets a suffix")
}
