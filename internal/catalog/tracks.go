package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"digitalis/internal/models"
)

// UpsertTrack inserts or refreshes a track keyed by its path, returning the
// stable catalog ID. Re-scanning the same file keeps its ID so queue entries
// and client references survive rescans.
func (s *Store) UpsertTrack(t *models.Track, seenAt time.Time) (int64, error) {
	var id int64
	err := s.db.QueryRow(
		`INSERT INTO tracks (path, title, artist, album, duration_ms, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   title = excluded.title,
		   artist = excluded.artist,
		   album = excluded.album,
		   duration_ms = excluded.duration_ms,
		   last_seen_at = excluded.last_seen_at
		 RETURNING id`,
		t.Path, t.Title, t.Artist, t.Album, t.DurationMs, seenAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting track %s: %w", t.Path, err)
	}
	return id, nil
}

// Resolve looks a track up by catalog ID.
func (s *Store) Resolve(id int64) (*models.Track, error) {
	t, err := scanTrack(s.db.QueryRow(
		`SELECT id, title, artist, album, duration_ms, path FROM tracks WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("track %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving track %d: %w", id, err)
	}
	return &t, nil
}

func (s *Store) ListTracks() ([]models.Track, error) {
	rows, err := s.db.Query(
		`SELECT id, title, artist, album, duration_ms, path FROM tracks ORDER BY artist, album, title`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

func (s *Store) ListArtists() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT artist FROM tracks WHERE artist != '' ORDER BY artist`)
	if err != nil {
		return nil, fmt.Errorf("listing artists: %w", err)
	}
	defer rows.Close()
	var artists []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		artists = append(artists, a)
	}
	return artists, rows.Err()
}

func (s *Store) ListAlbums(artist string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT album FROM tracks WHERE artist = ? AND album != '' ORDER BY album`, artist,
	)
	if err != nil {
		return nil, fmt.Errorf("listing albums for %s: %w", artist, err)
	}
	defer rows.Close()
	var albums []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

func (s *Store) ListAlbumTracks(artist, album string) ([]models.Track, error) {
	rows, err := s.db.Query(
		`SELECT id, title, artist, album, duration_ms, path FROM tracks
		 WHERE artist = ? AND album = ? ORDER BY title`,
		artist, album,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tracks for %s/%s: %w", artist, album, err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

// PruneBefore removes tracks not seen since the given time. The scanner
// calls this after a full walk to drop files deleted from disk.
func (s *Store) PruneBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM tracks WHERE last_seen_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning tracks: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) CountTracks() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tracks`).Scan(&n)
	return n, err
}

func (s *Store) CountArtists() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(DISTINCT artist) FROM tracks WHERE artist != ''`).Scan(&n)
	return n, err
}

func (s *Store) CountAlbums() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(DISTINCT artist || '/' || album) FROM tracks WHERE album != ''`).Scan(&n)
	return n, err
}

func scanTrack(row *sql.Row) (models.Track, error) {
	var t models.Track
	err := row.Scan(&t.ID, &t.Title, &t.Artist, &t.Album, &t.DurationMs, &t.Path)
	return t, err
}

func collectTracks(rows *sql.Rows) ([]models.Track, error) {
	var tracks []models.Track
	for rows.Next() {
		var t models.Track
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.Album, &t.DurationMs, &t.Path); err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}
