package service

import (
	"context"
	"errors"

	"github.com/atinyakov/observer/internal/models"
	"github.com/atinyakov/observer/internal/repository"
)

// LikeRepository defines the persistence operations required by LikeService.
type LikeRepository interface {
	AddLike(ctx context.Context, userID string, productID int64) error
	RemoveLike(ctx context.Context, userID string, productID int64) error
	LikedProducts(ctx context.Context, userID string, offset, limit int) ([]models.Product, error)
}

// LikeService implements the liked-products list.
type LikeService struct {
	repo LikeRepository
}

// NewLikeService constructs a LikeService.
func NewLikeService(repo LikeRepository) *LikeService {
	return &LikeService{repo: repo}
}

// Liked returns a page of products liked by userID.
func (s *LikeService) Liked(ctx context.Context, userID string, offset, limit int) ([]models.Product, error) {
	if offset < 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.LikedProducts(ctx, userID, offset, clampPageSize(limit))
}

// SetLike likes or unlikes productID for ownerID on behalf of requesterID.
func (s *LikeService) SetLike(ctx context.Context, requesterID, ownerID string, productID int64, like bool) error {
	if requesterID != ownerID {
		return ErrForbidden
	}
	var err error
	if like {
		err = s.repo.AddLike(ctx, ownerID, productID)
	} else {
		err = s.repo.RemoveLike(ctx, ownerID, productID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
