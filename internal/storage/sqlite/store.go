package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/spigell/vkinder/internal/profile"
	"github.com/spigell/vkinder/internal/storage"
)

//go:embed schema.sql
var schema string

// Store persists users, candidates, favorites and the blacklist in a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates missing tables. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range storage.Statements(schema) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) SaveUser(ctx context.Context, u profile.User) error {
	if err := storage.ValidateUser(u); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
INSERT INTO users (user_id, first_name, last_name, gender, age, city, profile_url, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (user_id) DO UPDATE SET
	first_name = excluded.first_name,
	last_name = excluded.last_name,
	gender = excluded.gender,
	age = excluded.age,
	city = excluded.city,
	profile_url = excluded.profile_url,
	updated_at = CURRENT_TIMESTAMP
`, u.ID, u.FirstName, u.LastName, u.Sex.Gender(), nullInt(u.Age), nullString(u.City), u.ProfileURL); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (profile.User, error) {
	var (
		u      profile.User
		gender string
		age    sql.NullInt64
		city   sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
SELECT user_id, first_name, last_name, gender, age, city, profile_url
FROM users
WHERE user_id = ?
`, userID).Scan(&u.ID, &u.FirstName, &u.LastName, &gender, &age, &city, &u.ProfileURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profile.User{}, storage.ErrUserNotFound
		}
		return profile.User{}, fmt.Errorf("get user: %w", err)
	}

	u.Sex = profile.SexFromGender(gender)
	u.Age = fromNullInt(age)
	u.City = city.String
	return u, nil
}

// SaveCandidate upserts the candidate and replaces its stored photos.
func (s *Store) SaveCandidate(ctx context.Context, c profile.Candidate, photos []profile.Photo) error {
	if err := storage.ValidateCandidate(c); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO candidates (candidate_id, first_name, last_name, gender, age, city, profile_url, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (candidate_id) DO UPDATE SET
	first_name = excluded.first_name,
	last_name = excluded.last_name,
	gender = excluded.gender,
	age = excluded.age,
	city = excluded.city,
	profile_url = excluded.profile_url,
	updated_at = CURRENT_TIMESTAMP
`, c.ID, c.FirstName, c.LastName, c.Sex.Gender(), nullInt(c.Age), nullString(c.City), c.ProfileURL); err != nil {
			return fmt.Errorf("upsert candidate: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM candidate_photos WHERE candidate_id = ?`, c.ID); err != nil {
			return fmt.Errorf("delete candidate photos: %w", err)
		}

		for i, p := range photos {
			rank := p.Rank
			if rank <= 0 {
				rank = i + 1
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO candidate_photos (candidate_id, photo_id, owner_id, url, likes, rank)
VALUES (?, ?, ?, ?, ?, ?)
`, c.ID, p.ID, p.OwnerID, p.URL, p.Likes, rank); err != nil {
				return fmt.Errorf("insert candidate photo: %w", err)
			}
		}
		return nil
	})
}

// CandidatePhotos returns stored photos ordered by rank.
func (s *Store) CandidatePhotos(ctx context.Context, candidateID int64, limit int) ([]profile.Photo, error) {
	if limit <= 0 {
		limit = storage.DefaultPhotoLimit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT photo_id, owner_id, url, likes, rank
FROM candidate_photos
WHERE candidate_id = ?
ORDER BY rank
LIMIT ?
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

	res, err := s.db.ExecContext(ctx, `
INSERT INTO favorites (user_id, candidate_id, added_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (user_id, candidate_id) DO NOTHING
`, userID, candidateID)
	if err != nil {
		return false, fmt.Errorf("insert favorite: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert favorite: %w", err)
	}
	return n == 1, nil
}

// RemoveFavorite reports whether the favorite existed.
func (s *Store) RemoveFavorite(ctx context.Context, userID, candidateID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = ? AND candidate_id = ?`, userID, candidateID)
	if err != nil {
		return false, fmt.Errorf("delete favorite: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete favorite: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Favorites(ctx context.Context, userID int64) ([]profile.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.candidate_id, c.first_name, c.last_name, c.gender, c.age, c.city, c.profile_url
FROM favorites f
JOIN candidates c ON c.candidate_id = f.candidate_id
WHERE f.user_id = ?
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
			age    sql.NullInt64
			city   sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &gender, &age, &city, &c.ProfileURL); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		c.Sex = profile.SexFromGender(gender)
		c.Age = fromNullInt(age)
		c.City = city.String
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

	if _, err := s.db.ExecContext(ctx, `
INSERT INTO blacklist (user_id, blocked_id, created_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (user_id, blocked_id) DO NOTHING
`, userID, blockedID); err != nil {
		return fmt.Errorf("insert blacklist entry: %w", err)
	}

	return nil
}

func (s *Store) Blacklist(ctx context.Context, userID int64) (profile.IDSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT blocked_id FROM blacklist WHERE user_id = ?`, userID)
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

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func fromNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullString(s string) sql.NullString {
	if p := storage.NullableString(s); p != nil {
		return sql.NullString{String: *p, Valid: true}
	}
	return sql.NullString{}
}
