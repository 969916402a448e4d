package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atinyakov/observer/internal/models"
)

func TestMemoryStore_Users(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if err := m.CreateUser(ctx, models.User{ID: "u1", Username: "alice", Subject: "s1"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := m.CreateUser(ctx, models.User{ID: "u2", Username: "alice"}); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate username = %v, want ErrConflict", err)
	}
	if ok, err := m.UserExists(ctx, "alice"); err != nil || !ok {
		t.Errorf("UserExists(alice) = %v, %v; want true", ok, err)
	}
	if ok, err := m.UserExists(ctx, "bob"); err != nil || ok {
		t.Errorf("UserExists(bob) = %v, %v; want false", ok, err)
	}
	if u, err := m.GetUserBySubject(ctx, "s1"); err != nil || u.ID != "u1" {
		t.Errorf("GetUserBySubject = %+v, %v", u, err)
	}
	if _, err := m.GetUserBySubject(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty subject = %v, want ErrNotFound", err)
	}

	_ = m.CreateSession(ctx, models.Session{Token: "t", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)})
	if err := m.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := m.GetSession(ctx, "t"); !errors.Is(err, ErrNotFound) {
		t.Errorf("session survived user deletion: %v", err)
	}
	if err := m.DeleteUser(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteUser = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ProductsAndLikes(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	for i, name := range []string{"blue 셔츠", "red 셔츠", "coat"} {
		_ = m.UpsertProduct(ctx, models.Product{ID: int64(i + 1), Name: name})
	}

	got, total, err := m.SearchProducts(ctx, "셔츠", 1, 1)
	if err != nil || total != 2 || len(got) != 1 || got[0].ID != 2 {
		t.Errorf("SearchProducts = %+v, %d, %v", got, total, err)
	}
	if got, _, _ := m.SearchProducts(ctx, "셔츠", 5, 10); len(got) != 0 {
		t.Errorf("offset past end = %+v", got)
	}

	for _, id := range []int64{1, 3, 1} {
		if err := m.AddLike(ctx, "u1", id); err != nil {
			t.Fatalf("AddLike(%d): %v", id, err)
		}
	}
	if err := m.AddLike(ctx, "u1", 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddLike unknown = %v, want ErrNotFound", err)
	}

	liked, _ := m.LikedProducts(ctx, "u1", 0, 10)
	if len(liked) != 2 || liked[0].ID != 3 || liked[1].ID != 1 {
		t.Errorf("LikedProducts = %+v", liked)
	}

	_ = m.RemoveLike(ctx, "u1", 3)
	liked, _ = m.LikedProducts(ctx, "u1", 0, 10)
	if len(liked) != 1 || liked[0].ID != 1 {
		t.Errorf("after RemoveLike = %+v", liked)
	}
}
