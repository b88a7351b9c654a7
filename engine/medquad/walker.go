package medquad

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Secantwave/Health-Advisor/engine/domain"
)

// Options limits a dataset walk. The zero value processes everything.
type Options struct {
	// MaxFiles caps the number of XML files processed; 0 means no cap.
	MaxFiles int
	// Subdirs restricts the walk to the named top-level subdirectories;
	// nil means all of them.
	Subdirs []string
}

// Skipped records a source file that was dropped from the run.
type Skipped struct {
	Path string
	Err  error
}

// LoadDir walks root for XML files and extracts documents from each. A file
// that cannot be read or parsed is skipped and reported; it never aborts the
// run. Ids use the file's slash-separated path relative to root.
func LoadDir(root string, opts Options, log *slog.Logger) ([]domain.Document, []Skipped, error) {
	if log == nil {
		log = slog.Default()
	}

	allowed := make(map[string]bool, len(opts.Subdirs))
	for _, d := range opts.Subdirs {
		allowed[d] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		if d.IsDir() {
			// Filter only at the top level; permitted subtrees walk fully.
			if len(allowed) > 0 && rel != "." && !strings.ContainsRune(rel, filepath.Separator) && !allowed[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".xml") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info("found XML files", "root", root, "count", len(files))
	if opts.MaxFiles > 0 && len(files) > opts.MaxFiles {
		files = files[:opts.MaxFiles]
		log.Info("limiting run", "max_files", opts.MaxFiles)
	}

	var docs []domain.Document
	var skipped []Skipped
	for i, path := range files {
		if (i+1)%10 == 0 {
			log.Info("processing", "file", i+1, "of", len(files), "name", filepath.Base(path))
		}

		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)

		content, err := os.ReadFile(path)
		if err != nil {
			log.Warn("cannot read file, skipping", "file", rel, "error", err)
			skipped = append(skipped, Skipped{Path: rel, Err: err})
			continue
		}

		pairs, err := ExtractQA(content)
		if err != nil {
			log.Warn("cannot parse file, skipping", "file", rel, "error", err)
			skipped = append(skipped, Skipped{Path: rel, Err: domain.NewSkipError(rel, err)})
			continue
		}

		docs = append(docs, BuildDocuments(rel, pairs)...)
	}

	log.Info("extraction complete", "files", len(files), "qa_pairs", len(docs), "skipped", len(skipped))
	return docs, skipped, nil
}
