// Package locale holds the per-locale game rules: alphabet, tile set,
// vocabulary id and board type. Definitions are loaded once at startup
// from embedded YAML and are read-only afterwards.
package locale

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// Locale is the full rule tuple for one region. Game operations are
// scoped by the game's own locale irrespective of the caller's UI locale.
type Locale struct {
	Code       string
	Language   string
	Vocabulary string
	BoardType  string
	Alphabet   *Alphabet
	TileSet    *TileSet
	// NewTileSet is the updated tile distribution selected by the
	// newbag game option; nil when the locale has only one bag.
	NewTileSet *TileSet
}

// Bag returns the tile set matching the newbag preference.
func (l *Locale) Bag(newBag bool) *TileSet {
	if newBag && l.NewTileSet != nil {
		return l.NewTileSet
	}
	return l.TileSet
}

// localeFile mirrors one data/*.yaml document.
type localeFile struct {
	Code       string      `yaml:"code"`
	Language   string      `yaml:"language"`
	Vocabulary string      `yaml:"vocabulary"`
	Board      string      `yaml:"board"`
	Alphabet   string      `yaml:"alphabet"`
	Tiles      []tileEntry `yaml:"tiles"`
	NewTiles   []tileEntry `yaml:"new_tiles"`
}

type tileEntry struct {
	Letter string `yaml:"letter"`
	Count  int    `yaml:"count"`
	Score  int    `yaml:"score"`
}

// Registry maps locale codes to their definitions.
type Registry struct {
	byCode     map[string]*Locale
	byLanguage map[string]*Locale
	def        string
}

// LoadRegistry parses every embedded locale definition. defaultCode must
// be among them.
func LoadRegistry(defaultCode string) (*Registry, error) {
	reg := &Registry{
		byCode:     make(map[string]*Locale),
		byLanguage: make(map[string]*Locale),
		def:        defaultCode,
	}

	entries, err := fs.ReadDir(dataFS, "data")
	if err != nil {
		return nil, fmt.Errorf("read locale data: %w", err)
	}
	for _, e := range entries {
		raw, err := dataFS.ReadFile("data/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		var lf localeFile
		if err := yaml.Unmarshal(raw, &lf); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		loc, err := buildLocale(&lf)
		if err != nil {
			return nil, fmt.Errorf("locale %s: %w", lf.Code, err)
		}
		reg.byCode[loc.Code] = loc
		if _, seen := reg.byLanguage[loc.Language]; !seen {
			reg.byLanguage[loc.Language] = loc
		}
	}

	if _, ok := reg.byCode[defaultCode]; !ok {
		return nil, fmt.Errorf("default locale %q not defined", defaultCode)
	}
	return reg, nil
}

func buildLocale(lf *localeFile) (*Locale, error) {
	if lf.Code == "" || lf.Alphabet == "" {
		return nil, fmt.Errorf("missing code or alphabet")
	}
	alpha, err := NewAlphabet(lf.Language, lf.Alphabet)
	if err != nil {
		return nil, err
	}
	ts, err := newTileSet(lf.Tiles, alpha)
	if err != nil {
		return nil, fmt.Errorf("tiles: %w", err)
	}
	loc := &Locale{
		Code:       lf.Code,
		Language:   lf.Language,
		Vocabulary: lf.Vocabulary,
		BoardType:  lf.Board,
		Alphabet:   alpha,
		TileSet:    ts,
	}
	if len(lf.NewTiles) > 0 {
		nts, err := newTileSet(lf.NewTiles, alpha)
		if err != nil {
			return nil, fmt.Errorf("new_tiles: %w", err)
		}
		loc.NewTileSet = nts
	}
	return loc, nil
}

// Get resolves a locale code: exact match, then language prefix, then the
// registry default.
func (r *Registry) Get(code string) *Locale {
	if loc, ok := r.byCode[code]; ok {
		return loc
	}
	lang := code
	if i := strings.IndexByte(code, '_'); i > 0 {
		lang = code[:i]
	}
	if loc, ok := r.byLanguage[lang]; ok {
		return loc
	}
	return r.byCode[r.def]
}

// Default returns the registry's default locale.
func (r *Registry) Default() *Locale {
	return r.byCode[r.def]
}

// Codes lists the registered locale codes, sorted.
func (r *Registry) Codes() []string {
	out := make([]string, 0, len(r.byCode))
	for c := range r.byCode {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
