package listings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"listing-site-generator/internal/application/uploads"
	"listing-site-generator/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrListingNotFound = errors.New("Listing not found")

// Service is the listing repository. PublicURL is the asset store base used
// to turn stored image keys into URLs.
type Service struct {
	DB        *gorm.DB
	PublicURL string
}

// ImageInput is one uploaded image to attach to a new listing.
type ImageInput struct {
	Key    string
	Width  *int
	Height *int
}

type CreateListingInput struct {
	Name        string
	Description string
	Area        string
	City        string
	Logo        string
	UserID      string
	HTML        string
	Images      []ImageInput
	EventData   map[string]interface{}
}

// ListingView is the read shape: image keys resolved to public URLs.
type ListingView struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Area        string    `json:"area"`
	City        string    `json:"city"`
	Images      []string  `json:"images"`
	Logo        string    `json:"logo"`
	HTML        *string   `json:"html"`
	UserID      string    `json:"userId"`
}

// Create writes the listing, its image rows and a GENERATED event in one transaction.
func (s *Service) Create(ctx context.Context, in CreateListingInput) (*domain.Listing, error) {
	html := in.HTML
	listing := &domain.Listing{
		Name:        in.Name,
		Description: in.Description,
		Area:        in.Area,
		City:        in.City,
		Logo:        in.Logo,
		HTML:        &html,
		UserID:      in.UserID,
	}
	images := make([]domain.ListingImage, 0, len(in.Images))
	for i, img := range in.Images {
		images = append(images, domain.ListingImage{
			Key:      img.Key,
			Position: i,
			Width:    img.Width,
			Height:   img.Height,
		})
	}

	eventData := map[string]interface{}{"image_count": len(in.Images)}
	for k, v := range in.EventData {
		eventData[k] = v
	}
	eventDataBytes, err := json.Marshal(eventData)
	if err != nil {
		return nil, fmt.Errorf("Failed to encode listing event: %w", err)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Images").Create(listing).Error; err != nil {
			return fmt.Errorf("Failed to create listing: %w", err)
		}
		for i := range images {
			images[i].ListingID = listing.ID
		}
		if len(images) > 0 {
			if err := tx.Create(&images).Error; err != nil {
				return fmt.Errorf("Failed to create listing images: %w", err)
			}
		}
		if err := tx.Create(&domain.ListingEvent{
			ListingID: listing.ID,
			EventType: domain.ListingEventGenerated,
			EventData: datatypes.JSON(eventDataBytes),
		}).Error; err != nil {
			return fmt.Errorf("Failed to create listing event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	listing.Images = images
	return listing, nil
}

// FindByID returns any listing by id regardless of owner (public preview path).
func (s *Service) FindByID(ctx context.Context, id string) (*ListingView, error) {
	listingID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrListingNotFound
	}
	return s.first(ctx, s.DB.WithContext(ctx).Where("id = ?", listingID))
}

// FindByIDAndUser returns the listing only if userID owns it. An unowned
// listing is reported exactly like a missing one.
func (s *Service) FindByIDAndUser(ctx context.Context, id, userID string) (*ListingView, error) {
	listingID, err := uuid.Parse(id)
	if err != nil || userID == "" {
		return nil, ErrListingNotFound
	}
	return s.first(ctx, s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", listingID, userID))
}

// FindAllByUser returns the caller's listings, newest first.
func (s *Service) FindAllByUser(ctx context.Context, userID string) ([]ListingView, error) {
	var listings []domain.Listing
	err := s.DB.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch listings: %w", err)
	}
	views := make([]ListingView, 0, len(listings))
	for i := range listings {
		views = append(views, s.view(&listings[i]))
	}
	return views, nil
}

// FindHTML returns only the generated document of a listing.
func (s *Service) FindHTML(ctx context.Context, id string) (string, error) {
	listingID, err := uuid.Parse(id)
	if err != nil {
		return "", ErrListingNotFound
	}
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Select("id", "html").Where("id = ?", listingID).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrListingNotFound
		}
		return "", err
	}
	if listing.HTML == nil {
		return "", nil
	}
	return *listing.HTML, nil
}

func (s *Service) first(ctx context.Context, q *gorm.DB) (*ListingView, error) {
	var listing domain.Listing
	err := q.Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	v := s.view(&listing)
	return &v, nil
}

func (s *Service) view(l *domain.Listing) ListingView {
	images := make([]string, 0, len(l.Images))
	for _, img := range l.Images {
		images = append(images, uploads.PublicURL(s.PublicURL, img.Key))
	}
	return ListingView{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		Area:        l.Area,
		City:        l.City,
		Images:      images,
		Logo:        l.Logo,
		HTML:        l.HTML,
		UserID:      l.UserID,
	}
}
