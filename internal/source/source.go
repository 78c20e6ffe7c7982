// Package source collects foreign records from a deck file, a directory of
// deck files, or a git repository of them.
package source

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/knolimport/internal/domain"
	"github.com/conorfennell/knolimport/internal/gitsource"
	"github.com/conorfennell/knolimport/internal/reader"
)

// Format names a deck file format.
type Format string

const (
	Auto     Format = "auto"
	CSV      Format = "csv"
	TSV      Format = "tsv"
	Markdown Format = "markdown"
)

// Options configures Collect.
type Options struct {
	Format    Format
	Delimiter rune // overrides the format's delimiter when set
	Header    bool
	ReposDir  string    // checkout root for git sources
	Progress  io.Writer // git progress output, may be nil
}

// Result holds the records read and the per-file errors met on the way.
type Result struct {
	Records []domain.ForeignRecord
	Files   int
	Errors  []error
}

// Collect reads every deck file under path. A git URL is cloned or pulled
// into opts.ReposDir first.
func Collect(path string, opts Options) (*Result, error) {
	if gitsource.IsURL(path) {
		local, err := gitsource.LocalPath(opts.ReposDir, path)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(local), os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create repos directory: %w", err)
		}
		if err := gitsource.Sync(path, local, opts.Progress); err != nil {
			return nil, err
		}
		path = local
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	res := &Result{}
	if !info.IsDir() {
		records, err := ReadFile(path, opts)
		if err != nil {
			return nil, err
		}
		res.Records = records
		res.Files = 1
		return res, nil
	}

	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := formatFor(p, opts.Format); !ok {
			return nil
		}
		records, readErr := ReadFile(p, opts)
		if readErr != nil {
			res.Errors = append(res.Errors, readErr)
			return nil
		}
		res.Files++
		res.Records = append(res.Records, records...)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", path, walkErr)
	}

	slog.Info("collected deck files",
		"path", path,
		"files", res.Files,
		"records", len(res.Records),
		"errors", len(res.Errors),
	)
	return res, nil
}

// ReadFile parses one deck file.
func ReadFile(path string, opts Options) ([]domain.ForeignRecord, error) {
	format, ok := formatFor(path, opts.Format)
	if !ok {
		return nil, fmt.Errorf("unknown deck format for %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []domain.ForeignRecord
	switch format {
	case Markdown:
		records, err = reader.ReadMarkdown(f)
	default:
		delim := ','
		if format == TSV {
			delim = '\t'
		}
		if opts.Delimiter != 0 {
			delim = opts.Delimiter
		}
		records, err = reader.ReadDelimited(f, reader.DelimitedOptions{Delimiter: delim, Header: opts.Header})
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	return records, nil
}

// formatFor resolves Auto by file extension.
func formatFor(path string, format Format) (Format, bool) {
	if format != "" && format != Auto {
		return format, true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, true
	case ".tsv", ".txt":
		return TSV, true
	case ".md":
		return Markdown, true
	default:
		return "", false
	}
}
