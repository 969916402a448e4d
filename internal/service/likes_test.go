package service

import (
	"context"
	"errors"
	"testing"

	"github.com/atinyakov/observer/internal/models"
	"github.com/atinyakov/observer/internal/repository"
)

type mockLikeRepo struct {
	AddLikeFunc       func(ctx context.Context, userID string, productID int64) error
	RemoveLikeFunc    func(ctx context.Context, userID string, productID int64) error
	LikedProductsFunc func(ctx context.Context, userID string, offset, limit int) ([]models.Product, error)
}

func (m *mockLikeRepo) AddLike(ctx context.Context, userID string, productID int64) error {
	return m.AddLikeFunc(ctx, userID, productID)
}

func (m *mockLikeRepo) RemoveLike(ctx context.Context, userID string, productID int64) error {
	return m.RemoveLikeFunc(ctx, userID, productID)
}

func (m *mockLikeRepo) LikedProducts(ctx context.Context, userID string, offset, limit int) ([]models.Product, error) {
	return m.LikedProductsFunc(ctx, userID, offset, limit)
}

func TestSetLike(t *testing.T) {
	var added, removed []int64
	repo := &mockLikeRepo{
		AddLikeFunc: func(ctx context.Context, userID string, productID int64) error {
			if productID == 404 {
				return repository.ErrNotFound
			}
			added = append(added, productID)
			return nil
		},
		RemoveLikeFunc: func(ctx context.Context, userID string, productID int64) error {
			removed = append(removed, productID)
			return nil
		},
	}
	svc := NewLikeService(repo)
	ctx := context.Background()

	if err := svc.SetLike(ctx, "u1", "u1", 1, true); err != nil {
		t.Errorf("like: %v", err)
	}
	if err := svc.SetLike(ctx, "u1", "u1", 1, false); err != nil {
		t.Errorf("unlike: %v", err)
	}
	if err := svc.SetLike(ctx, "u1", "u2", 1, true); !errors.Is(err, ErrForbidden) {
		t.Errorf("other user = %v; want ErrForbidden", err)
	}
	if err := svc.SetLike(ctx, "u1", "u1", 404, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown product = %v; want ErrNotFound", err)
	}
	if len(added) != 1 || len(removed) != 1 {
		t.Errorf("added = %v, removed = %v", added, removed)
	}
}

func TestLiked(t *testing.T) {
	repo := &mockLikeRepo{
		LikedProductsFunc: func(ctx context.Context, userID string, offset, limit int) ([]models.Product, error) {
			if userID != "u1" || offset != 40 || limit != 20 {
				t.Errorf("LikedProducts(%q, %d, %d)", userID, offset, limit)
			}
			return []models.Product{{ID: 1}}, nil
		},
	}
	got, err := NewLikeService(repo).Liked(context.Background(), "u1", 40, 0)
	if err != nil || len(got) != 1 {
		t.Errorf("Liked = %v, %v", got, err)
	}
	if _, err := NewLikeService(repo).Liked(context.Background(), "u1", -1, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative offset = %v; want ErrInvalidInput", err)
	}
}
