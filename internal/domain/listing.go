package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Listing is a generated real-estate site and the fields it was generated from.
// HTML stays nil until generation completes; rows are only written once it has.
type Listing struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	Description string         `gorm:"column:description;type:text;not null" json:"description"`
	Area        string         `gorm:"column:area;not null" json:"area"`
	City        string         `gorm:"column:city;not null" json:"city"`
	Logo        string         `gorm:"column:logo;not null" json:"logo"`
	HTML        *string        `gorm:"column:html;type:text" json:"html"`
	UserID      string         `gorm:"column:user_id;not null;index" json:"userId"`
	Images      []ListingImage `gorm:"foreignKey:ListingID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time      `gorm:"column:updated_at" json:"updatedAt"`
}

func (Listing) TableName() string {
	return "listings"
}

// BeforeCreate sets the id if not already set (DBs without default uuid).
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// ListingImage references one uploaded image by its asset store key.
type ListingImage struct {
	ListingID uuid.UUID `gorm:"column:listing_id;type:uuid;primaryKey" json:"listing_id"`
	Key       string    `gorm:"column:key;primaryKey;uniqueIndex" json:"key"`
	Position  int       `gorm:"column:position;not null;default:0" json:"position"`
	Width     *int      `gorm:"column:width" json:"width,omitempty"`
	Height    *int      `gorm:"column:height" json:"height,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
}

func (ListingImage) TableName() string {
	return "listing_images"
}
