package repositories

import (
	"strings"

	"gorm.io/gorm"

	"github.com/medev/blogapi/models"
	"github.com/medev/blogapi/utils"
)

// PostFilter narrows a post listing. AuthorSlug is mandatory at the API
// layer; the repository treats it as given. Title, when set, is matched as a
// case-insensitive substring.
type PostFilter struct {
	AuthorSlug string
	Title      string
}

// PostRepository is the persistence contract for posts. Implementations
// derive the slug from the title on every write, inside the same
// transaction as the row save.
type PostRepository interface {
	Insert(p *models.Post) error
	Update(p *models.Post) error
	Delete(p *models.Post) error
	FindBySlug(slug string) (*models.Post, error)
	FindByAuthor(f PostFilter) ([]models.Post, error)
}

// GormPostRepository backs PostRepository with MySQL through GORM.
type GormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository creates a GormPostRepository.
func NewGormPostRepository(db *gorm.DB) *GormPostRepository {
	return &GormPostRepository{db: db}
}

func (r *GormPostRepository) Insert(p *models.Post) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		slug, err := utils.UniqueSlug(p.Title, postSlugTaken(tx, p.ID))
		if err != nil {
			return err
		}
		p.Slug = slug
		return translate(tx.Create(p).Error)
	})
}

func (r *GormPostRepository) Update(p *models.Post) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		slug, err := utils.UniqueSlug(p.Title, postSlugTaken(tx, p.ID))
		if err != nil {
			return err
		}
		p.Slug = slug
		return translate(tx.Save(p).Error)
	})
}

func (r *GormPostRepository) Delete(p *models.Post) error {
	return r.db.Delete(p).Error
}

func (r *GormPostRepository) FindBySlug(slug string) (*models.Post, error) {
	var post models.Post
	if err := r.db.Preload("Author").Where("slug = ?", slug).First(&post).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (r *GormPostRepository) FindByAuthor(f PostFilter) ([]models.Post, error) {
	q := r.db.
		Joins("JOIN users ON users.id = posts.author_id").
		Where("users.slug = ?", f.AuthorSlug).
		Preload("Author").
		Order("posts.id")
	if f.Title != "" {
		q = q.Where("LOWER(posts.title) LIKE ?", "%"+strings.ToLower(f.Title)+"%")
	}
	var posts []models.Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// postSlugTaken reports whether a slug is held by a post other than id.
func postSlugTaken(tx *gorm.DB, id uint) func(string) (bool, error) {
	return func(slug string) (bool, error) {
		var count int64
		err := tx.Model(&models.Post{}).Where("slug = ? AND id <> ?", slug, id).Count(&count).Error
		return count > 0, err
	}
}
