// Package storagetest holds behaviour checks shared by every storage backend.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/spigell/vkinder/internal/profile"
	"github.com/spigell/vkinder/internal/storage"
)

// Store is the surface exercised by Run.
type Store interface {
	SaveUser(ctx context.Context, u profile.User) error
	GetUser(ctx context.Context, userID int64) (profile.User, error)
	SaveCandidate(ctx context.Context, c profile.Candidate, photos []profile.Photo) error
	CandidatePhotos(ctx context.Context, candidateID int64, limit int) ([]profile.Photo, error)
	AddFavorite(ctx context.Context, userID, candidateID int64) (bool, error)
	RemoveFavorite(ctx context.Context, userID, candidateID int64) (bool, error)
	Favorites(ctx context.Context, userID int64) ([]profile.Candidate, error)
	AddToBlacklist(ctx context.Context, userID, blockedID int64) error
	Blacklist(ctx context.Context, userID int64) (profile.IDSet, error)
}

// Run checks a freshly migrated, empty store created by newStore.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("candidate photos", func(t *testing.T) { testCandidatePhotos(t, newStore(t)) })
	t.Run("favorites", func(t *testing.T) { testFavorites(t, newStore(t)) })
	t.Run("blacklist", func(t *testing.T) { testBlacklist(t, newStore(t)) })
}

func testUsers(t *testing.T, s Store) {
	ctx := context.Background()

	if _, err := s.GetUser(ctx, 1); !errors.Is(err, storage.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	u := profile.User{ID: 1, FirstName: "Иван", LastName: "Петров", Age: profile.Age(30), City: "Москва", Sex: profile.SexMale, ProfileURL: "https://vk.com/id1"}
	if err := s.SaveUser(ctx, u); err != nil {
		t.Fatalf("save user: %v", err)
	}

	u.City = ""
	u.Age = nil
	u.ProfileURL = "https://vk.com/ivan"
	if err := s.SaveUser(ctx, u); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	got, err := s.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.FirstName != "Иван" || got.Sex != profile.SexMale || got.City != "" || got.Age != nil || got.ProfileURL != "https://vk.com/ivan" {
		t.Fatalf("unexpected user after upsert: %+v", got)
	}

	if err := s.SaveUser(ctx, profile.User{}); err == nil {
		t.Fatalf("expected validation error for empty user")
	}
}

func testCandidatePhotos(t *testing.T, s Store) {
	ctx := context.Background()

	c := profile.Candidate{ID: 10, FirstName: "Анна", LastName: "К", Age: profile.Age(28), City: "Казань", Sex: profile.SexFemale, ProfileURL: "https://vk.com/id10"}
	first := []profile.Photo{
		{ID: 1, OwnerID: 10, Likes: 9, URL: "u1", Rank: 1},
		{ID: 2, OwnerID: 10, Likes: 5, URL: "u2", Rank: 2},
		{ID: 3, OwnerID: 10, Likes: 1, URL: "u3", Rank: 3},
	}
	if err := s.SaveCandidate(ctx, c, first); err != nil {
		t.Fatalf("save candidate: %v", err)
	}

	photos, err := s.CandidatePhotos(ctx, 10, 2)
	if err != nil {
		t.Fatalf("candidate photos: %v", err)
	}
	if len(photos) != 2 || photos[0].ID != 1 || photos[1].ID != 2 {
		t.Fatalf("unexpected photos: %+v", photos)
	}

	if err := s.SaveCandidate(ctx, c, []profile.Photo{{ID: 7, OwnerID: 10, Likes: 3, URL: "u7"}}); err != nil {
		t.Fatalf("resave candidate: %v", err)
	}

	photos, err = s.CandidatePhotos(ctx, 10, 0)
	if err != nil {
		t.Fatalf("candidate photos: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != 7 || photos[0].Rank != 1 || photos[0].Attachment() != "photo10_7" {
		t.Fatalf("expected photos to be replaced, got %+v", photos)
	}

	if err := s.SaveCandidate(ctx, c, nil); err != nil {
		t.Fatalf("save candidate without photos: %v", err)
	}
	photos, err = s.CandidatePhotos(ctx, 10, 3)
	if err != nil || len(photos) != 0 {
		t.Fatalf("expected no photos, got %+v, %v", photos, err)
	}
}

func testFavorites(t *testing.T, s Store) {
	ctx := context.Background()

	if err := s.SaveUser(ctx, profile.User{ID: 1, FirstName: "U", Sex: profile.SexMale, ProfileURL: "https://vk.com/id1"}); err != nil {
		t.Fatalf("save user: %v", err)
	}
	for _, id := range []int64{10, 11} {
		c := profile.Candidate{ID: id, FirstName: "C", Sex: profile.SexFemale, ProfileURL: profile.ProfileURL(id, "")}
		if id == 11 {
			c.City = "Москва"
			c.Age = profile.Age(25)
		}
		if err := s.SaveCandidate(ctx, c, nil); err != nil {
			t.Fatalf("save candidate: %v", err)
		}
	}

	favs, err := s.Favorites(ctx, 1)
	if err != nil || len(favs) != 0 {
		t.Fatalf("expected no favorites, got %+v, %v", favs, err)
	}

	created, err := s.AddFavorite(ctx, 1, 10)
	if err != nil || !created {
		t.Fatalf("expected favorite to be created, got %v, %v", created, err)
	}
	created, err = s.AddFavorite(ctx, 1, 10)
	if err != nil || created {
		t.Fatalf("expected duplicate favorite to be ignored, got %v, %v", created, err)
	}
	if _, err := s.AddFavorite(ctx, 1, 11); err != nil {
		t.Fatalf("add favorite: %v", err)
	}

	favs, err = s.Favorites(ctx, 1)
	if err != nil {
		t.Fatalf("favorites: %v", err)
	}
	if len(favs) != 2 || favs[0].ID != 10 || favs[1].ID != 11 {
		t.Fatalf("unexpected favorites: %+v", favs)
	}
	if favs[1].City != "Москва" || favs[1].Age == nil || *favs[1].Age != 25 || favs[1].Sex != profile.SexFemale {
		t.Fatalf("favorite fields were not restored: %+v", favs[1])
	}

	found, err := s.RemoveFavorite(ctx, 1, 10)
	if err != nil || !found {
		t.Fatalf("expected favorite to be removed, got %v, %v", found, err)
	}
	found, err = s.RemoveFavorite(ctx, 1, 10)
	if err != nil || found {
		t.Fatalf("expected missing favorite to report false, got %v, %v", found, err)
	}

	favs, _ = s.Favorites(ctx, 1)
	if len(favs) != 1 || favs[0].ID != 11 {
		t.Fatalf("unexpected favorites after removal: %+v", favs)
	}
}

func testBlacklist(t *testing.T, s Store) {
	ctx := context.Background()

	ids, err := s.Blacklist(ctx, 1)
	if err != nil || ids.Len() != 0 {
		t.Fatalf("expected empty blacklist, got %v, %v", ids, err)
	}

	for _, id := range []int64{5, 6, 5} {
		if err := s.AddToBlacklist(ctx, 1, id); err != nil {
			t.Fatalf("add to blacklist: %v", err)
		}
	}
	if err := s.AddToBlacklist(ctx, 2, 7); err != nil {
		t.Fatalf("add to blacklist: %v", err)
	}

	ids, err = s.Blacklist(ctx, 1)
	if err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	if ids.Len() != 2 || !ids.Has(5) || !ids.Has(6) || ids.Has(7) {
		t.Fatalf("unexpected blacklist: %v", ids)
	}
}
