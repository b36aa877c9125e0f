// Package fonts resolves configured font families to loadable faces. The
// font directory is scanned once at startup; every request for an unknown
// family falls back to the bundled Go Regular face rather than failing
// the render.
package fonts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/freetype/truetype"
	"go.uber.org/zap"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"montaj/internal/models"
)

// FallbackFamily is the bundled face used when a requested family cannot
// be resolved. It carries no Arabic coverage.
const FallbackFamily = "Go Regular"

// knownFamilies are matched against scanned filenames so the usual release
// file names (NotoSansArabic-Regular.ttf, Amiri-Regular.ttf) resolve to
// their proper display names.
var knownFamilies = []string{
	"Noto Sans Arabic",
	"Amiri",
	"Cairo",
	"Tajawal",
	"Arial",
}

type entry struct {
	family string
	path   string
	arabic bool
	font   *truetype.Font
}

// Registry holds the parsed faces found in the font directory. It is
// read-only after construction and safe for concurrent use.
type Registry struct {
	log      *zap.Logger
	dir      string
	entries  map[string]*entry // keyed by normalized family name
	ordered  []*entry
	fallback *truetype.Font
}

// NewRegistry scans dir for TTF/OTF files. A missing or empty directory is
// not an error; the registry then serves only the bundled fallback.
func NewRegistry(log *zap.Logger, dir string) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fallback, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bundled fallback font: %w", err)
	}
	r := &Registry{
		log:      log.Named("fonts"),
		dir:      dir,
		entries:  make(map[string]*entry),
		fallback: fallback,
	}
	r.scan()
	return r, nil
}

func (r *Registry) scan() {
	if r.dir == "" {
		return
	}
	var paths []string
	for _, pattern := range []string{"*.ttf", "*.otf", "*.TTF", "*.OTF"} {
		matched, err := filepath.Glob(filepath.Join(r.dir, pattern))
		if err == nil {
			paths = append(paths, matched...)
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			r.log.Warn("skipping unreadable font file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		parsed, err := truetype.Parse(data)
		if err != nil {
			r.log.Warn("skipping unparseable font file",
				zap.String("path", path), zap.Error(err))
			continue
		}

		family := familyFromFile(path)
		key := normalize(family)
		if existing, ok := r.entries[key]; ok {
			// Prefer the regular weight when a family ships several files.
			if !preferred(path, existing.path) {
				continue
			}
			existing.path = path
			existing.font = parsed
			existing.arabic = coversArabic(data)
			continue
		}

		e := &entry{
			family: family,
			path:   path,
			arabic: coversArabic(data),
			font:   parsed,
		}
		r.entries[key] = e
		r.ordered = append(r.ordered, e)
		r.log.Info("registered font",
			zap.String("family", family),
			zap.String("path", path),
			zap.Bool("arabic", e.arabic))
	}
}

// Face resolves family to a sized face plus the family name actually used,
// so fallback substitution stays observable.
func (r *Registry) Face(family string, size float64) (xfont.Face, string) {
	opts := &truetype.Options{Size: size, DPI: 72, Hinting: xfont.HintingFull}
	if e, ok := r.entries[normalize(family)]; ok {
		return truetype.NewFace(e.font, opts), e.family
	}
	if family != "" && !strings.EqualFold(family, FallbackFamily) {
		r.log.Warn("font family not found, using bundled fallback",
			zap.String("family", family))
	}
	return truetype.NewFace(r.fallback, opts), FallbackFamily
}

// Has reports whether family resolves to a scanned file.
func (r *Registry) Has(family string) bool {
	_, ok := r.entries[normalize(family)]
	return ok
}

// CoversArabic reports whether family maps the Arabic probe set. The
// bundled fallback does not.
func (r *Registry) CoversArabic(family string) bool {
	if e, ok := r.entries[normalize(family)]; ok {
		return e.arabic
	}
	return false
}

// List returns every registered family, bundled fallback last.
func (r *Registry) List() []models.FontInfo {
	infos := make([]models.FontInfo, 0, len(r.ordered)+1)
	for _, e := range r.ordered {
		infos = append(infos, models.FontInfo{Family: e.family, Path: e.path, Arabic: e.arabic})
	}
	infos = append(infos, models.FontInfo{Family: FallbackFamily, Arabic: false})
	return infos
}

// familyFromFile derives a display name for a font file, preferring the
// known family list over filename cleanup.
func familyFromFile(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	flat := normalize(base)
	for _, known := range knownFamilies {
		if strings.Contains(flat, normalize(known)) {
			return known
		}
	}
	name := strings.NewReplacer("-", " ", "_", " ").Replace(base)
	for _, weight := range []string{" Regular", " regular"} {
		name = strings.TrimSuffix(name, weight)
	}
	return strings.TrimSpace(name)
}

// preferred reports whether candidate should replace current for the same
// family: the regular weight wins, then the shorter name.
func preferred(candidate, current string) bool {
	cand := strings.Contains(strings.ToLower(candidate), "regular")
	curr := strings.Contains(strings.ToLower(current), "regular")
	if cand != curr {
		return cand
	}
	return len(candidate) < len(current)
}

func normalize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(name))
}
