package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/vkinder/internal/profile"
	"github.com/spigell/vkinder/internal/storage"
)

// Store persists users, candidates, favorites and the blacklist in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool)
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) SaveUser(ctx context.Context, u profile.User) error {
	if err := storage.ValidateUser(u); err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, `
INSERT INTO users (
	user_id,
	first_name,
	last_name,
	gender,
	age,
	city,
	profile_url,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (user_id) DO UPDATE SET
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	gender = EXCLUDED.gender,
	age = EXCLUDED.age,
	city = EXCLUDED.city,
	profile_url = EXCLUDED.profile_url,
	updated_at = NOW()
`, u.ID, u.FirstName, u.LastName, u.Sex.Gender(), u.Age, storage.NullableString(u.City), u.ProfileURL); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (profile.User, error) {
	var (
		u      profile.User
		gender string
		city   *string
	)

	err := s.pool.QueryRow(ctx, `
SELECT user_id, first_name, last_name, gender, age, city, profile_url
FROM users
WHERE user_id = $1
`, userID).Scan(&u.ID, &u.FirstName, &u.LastName, &gender, &u.Age, &city, &u.ProfileURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.User{}, storage.ErrUserNotFound
		}
		return profile.User{}, fmt.Errorf("get user: %w", err)
	}

	u.Sex = profile.SexFromGender(gender)
	if city != nil {
		u.City = *city
	}
	return u, nil
}

// SaveCandidate upserts the candidate and replaces its stored photos.
func (s *Store) SaveCandidate(ctx context.Context, c profile.Candidate, photos []profile.Photo) error {
	if err := storage.ValidateCandidate(c); err != nil {
		return err
	}

	return WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
INSERT INTO candidates (
	candidate_id,
	first_name,
	last_name,
	gender,
	age,
	city,
	profile_url,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (candidate_id) DO UPDATE SET
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	gender = EXCLUDED.gender,
	age = EXCLUDED.age,
	city = EXCLUDED.city,
	profile_url = EXCLUDED.profile_url,
	updated_at = NOW()
`, c.ID, c.FirstName, c.LastName, c.Sex.Gender(), c.Age, storage.NullableString(c.City), c.ProfileURL); err != nil {
			return fmt.Errorf("upsert candidate: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM candidate_photos WHERE candidate_id = $1`, c.ID); err != nil {
			return fmt.Errorf("delete candidate photos: %w", err)
		}

		batch := &pgx.Batch{}
		for i, p := range photos {
			rank := p.Rank
			if rank <= 0 {
				rank = i + 1
			}
			batch.Queue(`
INSERT INTO candidate_photos (candidate_id, photo_id, owner_id, url, likes, rank)
VALUES ($1, $2, $3, $4, $5, $6)
`, c.ID, p.ID, p.OwnerID, p.URL, p.Likes, rank)
		}
		if batch.Len() == 0 {
			return nil
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert candidate photos: %w", err)
		}
		return nil
	})
}

// CandidatePhotos returns stored photos ordered by rank.
func (s *Store) CandidatePhotos(ctx context.Context, candidateID int64, limit int) ([]profile.Photo, error) {
	if limit <= 0 {
		limit = storage.DefaultPhotoLimit
	}

	rows, err := s.pool.Query(ctx, `
SELECT photo_id, owner_id, url, likes, rank
FROM candidate_photos
WHERE candidate_id = $1
ORDER BY rank
LIMIT $2
`, candidateID, limit)
	if err != nil {
		return nil, fmt.Errorf("query candidate photos: %w", err)
	}
	defer rows.Close()

	photos := make([]profile.Photo, 0, limit)
	for rows.Next() {
		var p profile.Photo
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.URL, &p.Likes, &p.Rank); err != nil {
			return nil, fmt.Errorf("scan candidate photo: %w", err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate photos: %w", err)
	}

	return photos, nil
}

// AddFavorite reports whether a new favorite was created.
func (s *Store) AddFavorite(ctx context.Context, userID, candidateID int64) (bool, error) {
	if err := storage.ValidatePair(userID, candidateID); err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx, `
INSERT INTO favorites (user_id, candidate_id, added_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id, candidate_id) DO NOTHING
`, userID, candidateID)
	if err != nil {
		return false, fmt.Errorf("insert favorite: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// RemoveFavorite reports whether the favorite existed.
func (s *Store) RemoveFavorite(ctx context.Context, userID, candidateID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND candidate_id = $2`, userID, candidateID)
	if err != nil {
		return false, fmt.Errorf("delete favorite: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (s *Store) Favorites(ctx context.Context, userID int64) ([]profile.Candidate, error) {
	rows, err := s.pool.Query(ctx, `
SELECT c.candidate_id, c.first_name, c.last_name, c.gender, c.age, c.city, c.profile_url
FROM favorites f
JOIN candidates c ON c.candidate_id = f.candidate_id
WHERE f.user_id = $1
ORDER BY f.added_at, f.id
`, userID)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	out := make([]profile.Candidate, 0)
	for rows.Next() {
		var (
			c      profile.Candidate
			gender string
			city   *string
		)
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &gender, &c.Age, &city, &c.ProfileURL); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		c.Sex = profile.SexFromGender(gender)
		if city != nil {
			c.City = *city
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}

	return out, nil
}

func (s *Store) AddToBlacklist(ctx context.Context, userID, blockedID int64) error {
	if err := storage.ValidatePair(userID, blockedID); err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, `
INSERT INTO blacklist (user_id, blocked_id, created_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id, blocked_id) DO NOTHING
`, userID, blockedID); err != nil {
		return fmt.Errorf("insert blacklist entry: %w", err)
	}

	return nil
}

func (s *Store) Blacklist(ctx context.Context, userID int64) (profile.IDSet, error) {
	rows, err := s.pool.Query(ctx, `SELECT blocked_id FROM blacklist WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query blacklist: %w", err)
	}
	defer rows.Close()

	ids := profile.NewIDSet()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan blacklist entry: %w", err)
		}
		ids.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blacklist: %w", err)
	}

	return ids, nil
}
