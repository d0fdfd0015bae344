package repositories

import (
	"errors"

	"gorm.io/gorm"

	"github.com/medev/blogapi/models"
	"github.com/medev/blogapi/utils"
)

// ErrNotFound is returned by every repository lookup that matches no row.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a write trips a unique index. It is the
// backstop for checks that race with concurrent writes.
var ErrDuplicate = errors.New("duplicate key")

// UserRepository is the persistence contract for accounts. Implementations
// derive the slug from the username on every write, inside the same
// transaction as the row save.
type UserRepository interface {
	Insert(u *models.User) error
	Update(u *models.User) error
	FindByID(id uint) (*models.User, error)
	FindByUsername(username string) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
	FindBySlug(slug string) (*models.User, error)
}

// GormUserRepository backs UserRepository with MySQL through GORM.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a GormUserRepository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Insert(u *models.User) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		slug, err := utils.UniqueSlug(u.Username, userSlugTaken(tx, u.ID))
		if err != nil {
			return err
		}
		u.Slug = slug
		return translate(tx.Create(u).Error)
	})
}

func (r *GormUserRepository) Update(u *models.User) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		slug, err := utils.UniqueSlug(u.Username, userSlugTaken(tx, u.ID))
		if err != nil {
			return err
		}
		u.Slug = slug
		return translate(tx.Save(u).Error)
	})
}

func (r *GormUserRepository) FindByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormUserRepository) FindByUsername(username string) (*models.User, error) {
	return r.findOne("username = ?", username)
}

func (r *GormUserRepository) FindByEmail(email string) (*models.User, error) {
	return r.findOne("email = ?", email)
}

func (r *GormUserRepository) FindBySlug(slug string) (*models.User, error) {
	return r.findOne("slug = ?", slug)
}

func (r *GormUserRepository) findOne(query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.Where(query, arg).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// userSlugTaken reports whether a slug is held by a user other than id.
func userSlugTaken(tx *gorm.DB, id uint) func(string) (bool, error) {
	return func(slug string) (bool, error) {
		var count int64
		err := tx.Model(&models.User{}).Where("slug = ? AND id <> ?", slug, id).Count(&count).Error
		return count > 0, err
	}
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
