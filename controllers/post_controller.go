package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medev/blogapi/middleware"
	"github.com/medev/blogapi/models"
	"github.com/medev/blogapi/permissions"
	"github.com/medev/blogapi/repositories"
	"github.com/medev/blogapi/utils"
)

const maxTitleLen = 50

// PostController handles the post CRUD and listing endpoints.
type PostController struct {
	posts repositories.PostRepository
	users repositories.UserRepository
}

// NewPostController creates a PostController.
func NewPostController(posts repositories.PostRepository, users repositories.UserRepository) *PostController {
	return &PostController{posts: posts, users: users}
}

type authorResponse struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type postResponse struct {
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Slug      string         `json:"slug"`
	Thumbnail string         `json:"thumbnail,omitempty"`
	Author    authorResponse `json:"author"`
}

func newPostResponse(p *models.Post) postResponse {
	return postResponse{
		Title:     p.Title,
		Content:   p.Content,
		Slug:      p.Slug,
		Thumbnail: p.Thumbnail,
		Author: authorResponse{
			Username:  p.Author.Username,
			FirstName: p.Author.FirstName,
			LastName:  p.Author.LastName,
		},
	}
}

// Create stores a new post owned by the caller.
func (p *PostController) Create(ctx *gin.Context) {
	callerID, authenticated := middleware.Caller(ctx)
	if !p.authorize(ctx, permissions.Request{
		Authenticated: authenticated,
		CallerID:      callerID,
		Op:            permissions.Create,
	}) {
		return
	}

	var req struct {
		Title     string `json:"title"`
		Content   string `json:"content"`
		Thumbnail string `json:"thumbnail"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Detail(ctx, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if errs := validatePostFields(title, content); len(errs) > 0 {
		utils.FieldErrors(ctx, errs)
		return
	}

	post := models.Post{
		Title:     title,
		Content:   utils.Sanitize(content),
		Thumbnail: strings.TrimSpace(req.Thumbnail),
		AuthorID:  callerID,
	}
	if err := p.posts.Insert(&post); err != nil {
		utils.Detail(ctx, http.StatusInternalServerError, "Failed to create post.")
		return
	}

	author, err := p.users.FindByID(callerID)
	if err != nil {
		utils.Detail(ctx, http.StatusInternalServerError, "Failed to create post.")
		return
	}
	post.Author = *author

	ctx.JSON(http.StatusCreated, newPostResponse(&post))
}

// List returns the posts of a single author, ordered oldest first. The
// author is mandatory; an optional title filter narrows the result.
func (p *PostController) List(ctx *gin.Context) {
	authorSlug := ctx.Query("user")
	if authorSlug == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "must specify a user."})
		return
	}

	posts, err := p.posts.FindByAuthor(repositories.PostFilter{
		AuthorSlug: authorSlug,
		Title:      ctx.Query("title"),
	})
	if err != nil {
		utils.Detail(ctx, http.StatusInternalServerError, "Failed to list posts.")
		return
	}

	out := make([]postResponse, 0, len(posts))
	for i := range posts {
		out = append(out, newPostResponse(&posts[i]))
	}
	ctx.JSON(http.StatusOK, out)
}

// Retrieve returns a single post by slug.
func (p *PostController) Retrieve(ctx *gin.Context) {
	post, ok := p.load(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, newPostResponse(post))
}

// Update replaces a post's content fields. Title and content are required.
func (p *PostController) Update(ctx *gin.Context) {
	post, ok := p.loadOwned(ctx, permissions.Update)
	if !ok {
		return
	}

	var req struct {
		Title     string  `json:"title"`
		Content   string  `json:"content"`
		Thumbnail *string `json:"thumbnail"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Detail(ctx, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if errs := validatePostFields(title, content); len(errs) > 0 {
		utils.FieldErrors(ctx, errs)
		return
	}

	post.Title = title
	post.Content = utils.Sanitize(content)
	if req.Thumbnail != nil {
		post.Thumbnail = strings.TrimSpace(*req.Thumbnail)
	}

	p.save(ctx, post)
}

// PartialUpdate applies only the submitted fields.
func (p *PostController) PartialUpdate(ctx *gin.Context) {
	post, ok := p.loadOwned(ctx, permissions.PartialUpdate)
	if !ok {
		return
	}

	var req struct {
		Title     *string `json:"title"`
		Content   *string `json:"content"`
		Thumbnail *string `json:"thumbnail"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Detail(ctx, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	errs := map[string][]string{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		switch {
		case title == "":
			errs["title"] = append(errs["title"], "This field may not be blank.")
		case len([]rune(title)) > maxTitleLen:
			errs["title"] = append(errs["title"], fmt.Sprintf("Ensure this field has no more than %d characters.", maxTitleLen))
		default:
			post.Title = title
		}
	}
	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if content == "" {
			errs["content"] = append(errs["content"], "This field may not be blank.")
		} else {
			post.Content = utils.Sanitize(content)
		}
	}
	if req.Thumbnail != nil {
		post.Thumbnail = strings.TrimSpace(*req.Thumbnail)
	}

	if len(errs) > 0 {
		utils.FieldErrors(ctx, errs)
		return
	}

	p.save(ctx, post)
}

// Delete removes a post owned by the caller.
func (p *PostController) Delete(ctx *gin.Context) {
	post, ok := p.loadOwned(ctx, permissions.Destroy)
	if !ok {
		return
	}
	if err := p.posts.Delete(post); err != nil {
		utils.Detail(ctx, http.StatusInternalServerError, "Failed to delete post.")
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (p *PostController) load(ctx *gin.Context) (*models.Post, bool) {
	post, err := p.posts.FindBySlug(ctx.Param("slug"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			utils.NotFound(ctx)
		} else {
			utils.Detail(ctx, http.StatusInternalServerError, "Failed to load post.")
		}
		return nil, false
	}
	return post, true
}

// loadOwned fetches the target post and runs the post policy for a mutating
// operation against it.
func (p *PostController) loadOwned(ctx *gin.Context, op permissions.Operation) (*models.Post, bool) {
	post, ok := p.load(ctx)
	if !ok {
		return nil, false
	}

	callerID, authenticated := middleware.Caller(ctx)
	if !p.authorize(ctx, permissions.Request{
		Authenticated: authenticated,
		CallerID:      callerID,
		OwnerID:       post.AuthorID,
		Op:            op,
	}) {
		return nil, false
	}
	return post, true
}

func (p *PostController) authorize(ctx *gin.Context, req permissions.Request) bool {
	decision := permissions.Check(req, permissions.PostPolicy...)
	if decision.Allowed {
		return true
	}
	status := http.StatusForbidden
	if decision.Kind == permissions.KindUnauthenticated {
		status = http.StatusUnauthorized
	}
	utils.Detail(ctx, status, decision.Detail)
	return false
}

func (p *PostController) save(ctx *gin.Context, post *models.Post) {
	if err := p.posts.Update(post); err != nil {
		utils.Detail(ctx, http.StatusInternalServerError, "Failed to update post.")
		return
	}
	ctx.JSON(http.StatusOK, newPostResponse(post))
}

func validatePostFields(title, content string) map[string][]string {
	errs := map[string][]string{}
	switch {
	case title == "":
		errs["title"] = append(errs["title"], "This field is required.")
	case len([]rune(title)) > maxTitleLen:
		errs["title"] = append(errs["title"], fmt.Sprintf("Ensure this field has no more than %d characters.", maxTitleLen))
	}
	if content == "" {
		errs["content"] = append(errs["content"], "This field is required.")
	}
	return errs
}
