package listingevents

import (
	"context"
	"errors"

	"listing-site-generator/internal/application/listings"
	"listing-site-generator/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// ListForListing returns the events of a listing owned by userID, oldest first.
func (s *Service) ListForListing(ctx context.Context, listingID, userID string) ([]domain.ListingEvent, error) {
	id, err := uuid.Parse(listingID)
	if err != nil || userID == "" {
		return nil, listings.ErrListingNotFound
	}

	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Select("id").Where("id = ? AND user_id = ?", id, userID).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, listings.ErrListingNotFound
		}
		return nil, err
	}

	events := []domain.ListingEvent{}
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", id).Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
