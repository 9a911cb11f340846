package customers

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrCustomerNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")

// Profile is the contact and shipping snapshot copied onto orders.
type Profile struct {
	ID           uuid.UUID
	Email        string
	FullName     string
	Phone        *string
	AddressLine1 *string
	AddressLine2 *string
	City         *string
	Region       *string
	PostalCode   *string
	Country      *string
}

// Reader is what checkout needs from the customer store.
type Reader interface {
	GetActive(ctx context.Context, id uuid.UUID) (*Profile, error)
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetActive loads an active customer's profile. Inactive and unknown
// customers are both ErrCustomerNotFound.
func (r *Repository) GetActive(ctx context.Context, id uuid.UUID) (*Profile, error) {
	if id == uuid.Nil {
		return nil, ErrCustomerNotFound
	}
	var row models.Customer
	err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&row).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrCustomerNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return toProfile(row), nil
}

// FindByEmail returns the full row for credential checks.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrCustomerNotFound
	}
	var row models.Customer
	if err := r.db.WithContext(ctx).Where("lower(email) = ?", email).First(&row).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, ErrCustomerNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return &row, nil
}

// Create inserts a customer; duplicate emails are a conflict.
func (r *Repository) Create(ctx context.Context, c *models.Customer) error {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		if db.IsUniqueViolation(err, "ux_customers_email") {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return err
	}
	return nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

func toProfile(c models.Customer) *Profile {
	return &Profile{
		ID:           c.ID,
		Email:        c.Email,
		FullName:     c.FullName,
		Phone:        c.Phone,
		AddressLine1: c.AddressLine1,
		AddressLine2: c.AddressLine2,
		City:         c.City,
		Region:       c.Region,
		PostalCode:   c.PostalCode,
		Country:      c.Country,
	}
}
