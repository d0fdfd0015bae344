package controllers

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medev/blogapi/models"
	"github.com/medev/blogapi/repositories"
	"github.com/medev/blogapi/utils"
)

func init() {
	os.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)
}

// fakeUserRepository keeps users in memory and mirrors the slug semantics of
// the GORM implementation.
type fakeUserRepository struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{nextID: 1, users: map[uint]*models.User{}}
}

func (r *fakeUserRepository) Insert(u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.ID = r.nextID
	r.nextID++
	if r.conflicts(u) {
		return repositories.ErrDuplicate
	}
	if err := r.assignSlug(u); err != nil {
		return err
	}
	// Mirror the GORM BeforeCreate hook (models/user.go).
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now()
	}
	stored := *u
	r.users[u.ID] = &stored
	return nil
}

func (r *fakeUserRepository) Update(u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return repositories.ErrNotFound
	}
	if r.conflicts(u) {
		return repositories.ErrDuplicate
	}
	if err := r.assignSlug(u); err != nil {
		return err
	}
	stored := *u
	r.users[u.ID] = &stored
	return nil
}

// conflicts mirrors the username/email unique indexes.
func (r *fakeUserRepository) conflicts(u *models.User) bool {
	for id, other := range r.users {
		if id == u.ID {
			continue
		}
		if other.Username == u.Username || strings.EqualFold(other.Email, u.Email) {
			return true
		}
	}
	return false
}

func (r *fakeUserRepository) FindByID(id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepository) FindByUsername(username string) (*models.User, error) {
	return r.findOne(func(u *models.User) bool { return u.Username == username })
}

func (r *fakeUserRepository) FindByEmail(email string) (*models.User, error) {
	return r.findOne(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *fakeUserRepository) FindBySlug(slug string) (*models.User, error) {
	return r.findOne(func(u *models.User) bool { return u.Slug == slug })
}

func (r *fakeUserRepository) findOne(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepository) assignSlug(u *models.User) error {
	slug, err := utils.UniqueSlug(u.Username, func(candidate string) (bool, error) {
		for id, other := range r.users {
			if id != u.ID && other.Slug == candidate {
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	u.Slug = slug
	return nil
}

// fakePostRepository keeps posts in memory, deriving slugs from titles the
// way the GORM implementation does.
type fakePostRepository struct {
	mu     sync.Mutex
	nextID uint
	posts  map[uint]*models.Post
	users  *fakeUserRepository
}

func newFakePostRepository(users *fakeUserRepository) *fakePostRepository {
	return &fakePostRepository{nextID: 1, posts: map[uint]*models.Post{}, users: users}
}

func (r *fakePostRepository) Insert(p *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.nextID
	r.nextID++
	if err := r.assignSlug(p); err != nil {
		return err
	}
	stored := *p
	r.posts[p.ID] = &stored
	return nil
}

func (r *fakePostRepository) Update(p *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[p.ID]; !ok {
		return repositories.ErrNotFound
	}
	if err := r.assignSlug(p); err != nil {
		return err
	}
	stored := *p
	r.posts[p.ID] = &stored
	return nil
}

func (r *fakePostRepository) Delete(p *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[p.ID]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.posts, p.ID)
	return nil
}

func (r *fakePostRepository) FindBySlug(slug string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.Slug == slug {
			copied := *p
			r.attachAuthor(&copied)
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakePostRepository) FindByAuthor(f repositories.PostFilter) ([]models.Post, error) {
	author, err := r.users.FindBySlug(f.AuthorSlug)
	if err != nil {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Post
	for id := uint(1); id < r.nextID; id++ {
		p, ok := r.posts[id]
		if !ok || p.AuthorID != author.ID {
			continue
		}
		if f.Title != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(f.Title)) {
			continue
		}
		copied := *p
		r.attachAuthor(&copied)
		out = append(out, copied)
	}
	return out, nil
}

func (r *fakePostRepository) attachAuthor(p *models.Post) {
	if author, err := r.users.FindByID(p.AuthorID); err == nil {
		p.Author = *author
	}
}

func (r *fakePostRepository) assignSlug(p *models.Post) error {
	slug, err := utils.UniqueSlug(p.Title, func(candidate string) (bool, error) {
		for id, other := range r.posts {
			if id != p.ID && other.Slug == candidate {
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	p.Slug = slug
	return nil
}
