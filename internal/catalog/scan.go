package catalog

import (
	"context"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"time"

	"digitalis/internal/models"
)

// supportedExtensions are accepted by file extension only; the files are
// never parsed here. Duration stays 0 (unknown) unless a later importer
// fills it in.
var supportedExtensions = map[string]struct{}{
	".mp3": {}, ".flac": {}, ".ogg": {}, ".wav": {}, ".m4a": {}, ".aac": {},
}

// Scanner walks a music root and indexes tracks laid out as
// artist/album/title.ext. Files outside that layout are skipped.
type Scanner struct {
	store *Store
	root  string
}

type ScanStats struct {
	Files     int
	Supported int
	Indexed   int
	Pruned    int64
}

func NewScanner(store *Store, root string) *Scanner {
	return &Scanner{store: store, root: root}
}

// Scan walks the root, upserts every supported track, and prunes index
// entries whose files have disappeared.
func (sc *Scanner) Scan(ctx context.Context) (ScanStats, error) {
	start := time.Now().UTC()
	var stats ScanStats

	err := filepath.WalkDir(sc.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		stats.Files++
		track, ok := trackFromPath(sc.root, path)
		if !ok {
			return nil
		}
		stats.Supported++
		if _, err := sc.store.UpsertTrack(track, start); err != nil {
			log.Printf("indexing %s: %v", track.Path, err)
			return nil
		}
		stats.Indexed++
		return nil
	})
	if err != nil {
		return stats, err
	}

	pruned, err := sc.store.PruneBefore(start)
	if err != nil {
		return stats, err
	}
	stats.Pruned = pruned

	log.Printf("scanned %d files (%d supported), indexed %d tracks, pruned %d",
		stats.Files, stats.Supported, stats.Indexed, stats.Pruned)
	return stats, nil
}

// trackFromPath derives metadata from the path relative to the music root.
// Expects at least artist/album/file; anything shallower is skipped.
func trackFromPath(root, fullPath string) (*models.Track, bool) {
	ext := strings.ToLower(filepath.Ext(fullPath))
	if _, ok := supportedExtensions[ext]; !ok {
		return nil, false
	}
	rel, err := filepath.Rel(root, fullPath)
	if err != nil {
		return nil, false
	}
	rel = filepath.ToSlash(rel)
	parts := strings.Split(rel, "/")
	if len(parts) < 3 {
		return nil, false
	}
	filename := parts[len(parts)-1]
	title := strings.TrimSuffix(filename, filepath.Ext(filename))
	return &models.Track{
		Title:  title,
		Artist: parts[0],
		Album:  parts[1],
		Path:   rel,
	}, true
}
