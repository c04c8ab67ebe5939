// Package bundle packs a generated article and its images into a zip
// archive laid out as <slug>.md plus images/<file>.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"scribeflow/pkg/zip"
)

const (
	fallbackSlug  = "blog"
	fallbackImage = "image.png"
)

var (
	unsafeSlugChars = regexp.MustCompile(`[^a-z0-9 _-]+`)
	slugSpaces      = regexp.MustCompile(`\s+`)
)

// Downloader fetches a file referenced by the job service.
type Downloader interface {
	Download(ctx context.Context, ref string) ([]byte, string, error)
}

// Bundle is a ready to save archive.
type Bundle struct {
	Name string
	Data []byte
}

// Slug turns a title into a file name stem: lower case, only [a-z0-9 _-]
// kept, whitespace runs collapsed to "_". Empty results become "blog".
func Slug(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = unsafeSlugChars.ReplaceAllString(s, "")
	s = strings.Trim(slugSpaces.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return fallbackSlug
	}
	return s
}

// MarkdownName is the file name used for a standalone markdown download.
func MarkdownName(title string) string {
	return Slug(title) + ".md"
}

// ImageName derives the archive file name of an image reference from the
// last path segment, ignoring any query string.
func ImageName(ref string) string {
	ref = strings.TrimSpace(ref)
	if u, err := url.Parse(ref); err == nil {
		ref = u.Path
	} else if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.ReplaceAll(ref, "\\", "/")
	name := ref[strings.LastIndex(ref, "/")+1:]
	if name == "" || name == "." || name == ".." {
		return fallbackImage
	}
	return name
}

// Build downloads every image and packs it next to markdown. Any failed
// download aborts the whole bundle.
func Build(ctx context.Context, dl Downloader, title, markdown string, images []string, now time.Time) (Bundle, error) {
	slug := Slug(title)
	assets := []zip.Asset{{Filename: slug + ".md", MIME: "text/markdown", Data: []byte(markdown)}}

	for _, ref := range images {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		if dl == nil {
			return Bundle{}, errors.New("bundle: no downloader for images")
		}
		data, mime, err := dl.Download(ctx, ref)
		if err != nil {
			return Bundle{}, fmt.Errorf("bundle: download %s: %w", ref, err)
		}
		assets = append(assets, zip.Asset{Filename: "images/" + ImageName(ref), MIME: mime, Data: data})
	}

	data, err := zip.ArchiveAssets(assets, now)
	if err != nil {
		return Bundle{}, fmt.Errorf("bundle: %w", err)
	}
	return Bundle{Name: slug + "_bundle.zip", Data: data}, nil
}
