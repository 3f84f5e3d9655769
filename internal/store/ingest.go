package store

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var ingestExts = map[string]bool{".md": true, ".markdown": true, ".txt": true}

// IngestReport summarizes an ingest run.
type IngestReport struct {
	Files     int `json:"files"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Chunks    int `json:"chunks"`
}

// Ingest walks dir and stores every markdown or text file. Sources are
// recorded relative to dir.
func (k *Knowledge) Ingest(ctx context.Context, dir string) (IngestReport, error) {
	var rep IngestReport
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !ingestExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		doc, changed, err := k.Put(ctx, rel, titleOf(rel, string(data)), string(data))
		if err != nil {
			return fmt.Errorf("storing %s: %w", rel, err)
		}
		rep.Files++
		rep.Chunks += doc.Chunks
		if changed {
			rep.Updated++
		} else {
			rep.Unchanged++
		}
		return nil
	})
	if err != nil {
		return rep, err
	}
	k.db.log.Info().
		Int("files", rep.Files).
		Int("updated", rep.Updated).
		Int("chunks", rep.Chunks).
		Msg("knowledge ingest complete")
	return rep, nil
}

// Prune deletes documents whose source file no longer exists under dir and
// returns how many were removed.
func (k *Knowledge) Prune(ctx context.Context, dir string) (int, error) {
	docs, err := k.Documents(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, doc := range docs {
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(doc.Source)))
		if err == nil || !os.IsNotExist(err) {
			continue
		}
		if err := k.Delete(ctx, doc.Source); err != nil {
			return removed, fmt.Errorf("deleting %s: %w", doc.Source, err)
		}
		removed++
	}
	if removed > 0 {
		k.db.log.Info().Int("removed", removed).Msg("pruned knowledge documents")
	}
	return removed, nil
}

// titleOf uses the first markdown heading, falling back to the file name.
func titleOf(source, content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
		if line != "" {
			break
		}
	}
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
