package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medev/blogapi/middleware"
	"github.com/medev/blogapi/utils"
)

// newAPIServer wires the auth and post endpoints over shared fakes, mirroring
// the production route table.
func newAPIServer(users *fakeUserRepository, posts *fakePostRepository) *gin.Engine {
	resets := utils.NewPasswordResetTokens("test-secret", time.Hour)
	auth := NewAuthController(users, resets, (&mailRecorder{}).send)
	postCtrl := NewPostController(posts, users)

	r := gin.New()
	r.POST("/auth/register", auth.Register)

	group := r.Group("/posts", middleware.AuthOptional())
	group.GET("", postCtrl.List)
	group.POST("", postCtrl.Create)
	group.GET("/:slug", postCtrl.Retrieve)
	group.PUT("/:slug", postCtrl.Update)
	group.PATCH("/:slug", postCtrl.PartialUpdate)
	group.DELETE("/:slug", postCtrl.Delete)
	return r
}

func newPostFixture(t *testing.T) (*gin.Engine, *fakeUserRepository, *fakePostRepository, string) {
	t.Helper()
	users := newFakeUserRepository()
	posts := newFakePostRepository(users)
	r := newAPIServer(users, posts)
	key := registerUser(t, r, "alice", "alice@example.com", "s3cure-enough")
	return r, users, posts, key
}

func createPost(t *testing.T, r *gin.Engine, key, title, content string) map[string]any {
	t.Helper()
	w := performJSON(t, r, http.MethodPost, "/posts", map[string]any{"title": title, "content": content}, key)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody(t, w)
}

func TestCreatePost(t *testing.T) {
	r, _, _, key := newPostFixture(t)

	body := createPost(t, r, key, "My First Post", "hello world")
	assert.Equal(t, "My First Post", body["title"])
	assert.Equal(t, "hello world", body["content"])
	assert.Equal(t, "my-first-post", body["slug"])
	assert.NotContains(t, body, "thumbnail")

	author, ok := body["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", author["username"])
	assert.Contains(t, author, "first_name")
	assert.Contains(t, author, "last_name")
	assert.NotContains(t, author, "email")
}

func TestCreatePostRequiresAuth(t *testing.T) {
	r, _, _, _ := newPostFixture(t)

	w := performJSON(t, r, http.MethodPost, "/posts", map[string]any{"title": "t", "content": "c"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authentication credentials were not provided.", decodeBody(t, w)["detail"])
}

func TestCreatePostValidation(t *testing.T) {
	r, _, _, key := newPostFixture(t)

	w := performJSON(t, r, http.MethodPost, "/posts", map[string]any{}, key)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"This field is required."}, fieldMessages(t, w, "title"))
	assert.Equal(t, []string{"This field is required."}, fieldMessages(t, w, "content"))

	w = performJSON(t, r, http.MethodPost, "/posts", map[string]any{"title": strings.Repeat("a", 51), "content": "c"}, key)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"Ensure this field has no more than 50 characters."}, fieldMessages(t, w, "title"))
}

func TestCreatePostSanitizesContent(t *testing.T) {
	r, _, _, key := newPostFixture(t)

	body := createPost(t, r, key, "Scripted", `hello <script>alert("x")</script>world`)
	content, ok := body["content"].(string)
	require.True(t, ok)
	assert.NotContains(t, content, "<script>")
	assert.Contains(t, content, "hello")
}

func TestCreatePostSlugCollision(t *testing.T) {
	r, _, _, key := newPostFixture(t)

	first := createPost(t, r, key, "Same Title", "one")
	second := createPost(t, r, key, "Same Title", "two")
	assert.Equal(t, "same-title", first["slug"])
	assert.Equal(t, "same-title-2", second["slug"])
}

func TestListRequiresUserParam(t *testing.T) {
	r, _, _, _ := newPostFixture(t)

	w := performJSON(t, r, http.MethodGet, "/posts", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "must specify a user.", decodeBody(t, w)["error"])
}

func TestListByAuthor(t *testing.T) {
	r, _, _, key := newPostFixture(t)
	bobKey := registerUser(t, r, "bob", "bob@example.com", "s3cure-enough")

	createPost(t, r, key, "First", "a")
	createPost(t, r, key, "Second", "b")
	createPost(t, r, bobKey, "Bob Post", "c")

	w := performJSON(t, r, http.MethodGet, "/posts?user=alice", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "First", out[0]["title"])
	assert.Equal(t, "Second", out[1]["title"])
}

func TestListTitleFilter(t *testing.T) {
	r, _, _, key := newPostFixture(t)
	createPost(t, r, key, "Go Tips", "a")
	createPost(t, r, key, "Python Tricks", "b")

	w := performJSON(t, r, http.MethodGet, "/posts?user=alice&title=go", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "Go Tips", out[0]["title"])
}

func TestListUnknownAuthorIsEmpty(t *testing.T) {
	r, _, _, _ := newPostFixture(t)

	w := performJSON(t, r, http.MethodGet, "/posts?user=nobody", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestRetrievePost(t *testing.T) {
	r, _, _, key := newPostFixture(t)
	created := createPost(t, r, key, "My Post", "content here")

	w := performJSON(t, r, http.MethodGet, "/posts/"+created["slug"].(string), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "My Post", body["title"])

	w = performJSON(t, r, http.MethodGet, "/posts/missing", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not found.", decodeBody(t, w)["detail"])
}

func TestUpdatePost(t *testing.T) {
	r, _, _, key := newPostFixture(t)
	createPost(t, r, key, "Old Title", "old content")

	w := performJSON(t, r, http.MethodPut, "/posts/old-title", map[string]any{"title": "New Title", "content": "new content"}, key)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "New Title", body["title"])
	assert.Equal(t, "new-title", body["slug"])

	// the old slug no longer resolves
	w = performJSON(t, r, http.MethodGet, "/posts/old-title", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdatePostUnchangedTitleKeepsSlug(t *testing.T) {
	r, _, _, key := newPostFixture(t)
	createPost(t, r, key, "Stable Title", "v1")

	w := performJSON(t, r, http.MethodPut, "/posts/stable-title", map[string]any{"title": "Stable Title", "content": "v2"}, key)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "stable-title", decodeBody(t, w)["slug"])
}

func TestUpdatePostValidation(t *testing.T) {
	r, _, _, key := newPostFixture(t)
	createPost(t, r, key, "My Post", "content")

	w := performJSON(t, r, http.MethodPut, "/posts/my-post", map[string]any{"title": "My Post"}, key)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"This field is required."}, fieldMessages(t, w, "content"))
}

func TestUpdatePostByNonOwnerForbidden(t *testing.T) {
	r, _, _, key := newPostFixture(t)
	bobKey := registerUser(t, r, "bob", "bob@example.com", "s3cure-enough")
	createPost(t, r, key, "Alice Post", "content")

	w := performJSON(t, r, http.MethodPut, "/posts/alice-post", map[string]any{"title": "Hijack", "content": "x"}, bobKey)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You do not have permission to perform this action.", decodeBody(t, w)["detail"])
}

func TestUpdatePostAnonymousUnauthorized(t *testing.T) {
	r, _, _, key := newPostFixture(t)
	createPost(t, r, key, "Alice Post", "content")

	w := performJSON(t, r, http.MethodPut, "/posts/alice-post", map[string]any{"title": "Hijack", "content": "x"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authentication credentials were not provided.", decodeBody(t, w)["detail"])
}

func TestPartialUpdatePost(t *testing.T) {
	r, _, _, key := newPostFixture(t)
	createPost(t, r, key, "My Post", "original")

	w := performJSON(t, r, http.MethodPatch, "/posts/my-post", map[string]any{"content": "revised"}, key)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "My Post", body["title"])
	assert.Equal(t, "revised", body["content"])
	assert.Equal(t, "my-post", body["slug"])
}

func TestPartialUpdateBlankTitleRejected(t *testing.T) {
	r, _, _, key := newPostFixture(t)
	createPost(t, r, key, "My Post", "content")

	w := performJSON(t, r, http.MethodPatch, "/posts/my-post", map[string]any{"title": "  "}, key)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"This field may not be blank."}, fieldMessages(t, w, "title"))
}

func TestDeletePost(t *testing.T) {
	r, _, _, key := newPostFixture(t)
	createPost(t, r, key, "Doomed", "content")

	w := performJSON(t, r, http.MethodDelete, "/posts/doomed", nil, key)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = performJSON(t, r, http.MethodGet, "/posts/doomed", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeletePostByNonOwnerForbidden(t *testing.T) {
	r, _, _, key := newPostFixture(t)
	bobKey := registerUser(t, r, "bob", "bob@example.com", "s3cure-enough")
	createPost(t, r, key, "Alice Post", "content")

	w := performJSON(t, r, http.MethodDelete, "/posts/alice-post", nil, bobKey)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeleteMissingPost(t *testing.T) {
	r, _, _, key := newPostFixture(t)

	w := performJSON(t, r, http.MethodDelete, "/posts/nope", nil, key)
	require.Equal(t, http.StatusNotFound, w.Code)
}
