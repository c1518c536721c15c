// internal/tokens/themes.go
//
// Token themes for the match engine.
//
// Responsibilities:
//   - Load named token lists from YAML (a file on disk or the embedded default).
//   - Validate every theme: unique name, non-empty distinct tokens (NFC), at
//     least game.MinPairs tokens.
//   - Hand out the first N tokens of a theme for an N-pair game.
//
// File format:
//
//	themes:
//	  - name: classic
//	    tokens: ["🎮", "🎯", ...]
//
// Unknown fields are rejected so typos in a theme file fail loudly.

package tokens

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/robalobadob/pairs/assets"
	"github.com/robalobadob/pairs/internal/game"
)

var (
	ErrUnknownTheme  = errors.New("unknown theme")
	ErrThemeTooSmall = errors.New("theme has too few tokens")
)

// Theme is a named, ordered list of distinct tokens.
type Theme struct {
	Name   string   `yaml:"name"`
	Tokens []string `yaml:"tokens"`
}

type themeFile struct {
	Themes []Theme `yaml:"themes"`
}

// Catalog is an immutable set of validated themes.
type Catalog struct {
	themes map[string][]game.Token
	order  []string
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog built from the embedded themes.yaml.
// It is parsed once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		data, err := assets.Themes()
		if err != nil {
			defaultErr = err
			return
		}
		defaultCatalog, defaultErr = Parse(data)
	})
	return defaultCatalog, defaultErr
}

// Load reads a theme file from path, or falls back to the embedded default
// when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read themes %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a theme file.
func Parse(data []byte) (*Catalog, error) {
	var f themeFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse themes: %w", err)
	}
	if len(f.Themes) == 0 {
		return nil, errors.New("themes: no themes defined")
	}

	c := &Catalog{themes: make(map[string][]game.Token, len(f.Themes))}
	for _, th := range f.Themes {
		if th.Name == "" {
			return nil, errors.New("themes: theme without a name")
		}
		if _, dup := c.themes[th.Name]; dup {
			return nil, fmt.Errorf("themes: duplicate theme %q", th.Name)
		}
		if len(th.Tokens) < game.MinPairs {
			return nil, fmt.Errorf("themes: %q needs at least %d tokens", th.Name, game.MinPairs)
		}
		seen := make(map[game.Token]struct{}, len(th.Tokens))
		list := make([]game.Token, 0, len(th.Tokens))
		for _, raw := range th.Tokens {
			t := game.Normalize(game.Token(raw))
			if t == "" {
				return nil, fmt.Errorf("themes: %q has an empty token", th.Name)
			}
			if _, dup := seen[t]; dup {
				return nil, fmt.Errorf("themes: %q repeats token %q", th.Name, t)
			}
			seen[t] = struct{}{}
			list = append(list, t)
		}
		c.themes[th.Name] = list
		c.order = append(c.order, th.Name)
	}
	return c, nil
}

// Names lists theme names in file order.
func (c *Catalog) Names() []string {
	return append([]string{}, c.order...)
}

// Size reports how many tokens (and so how many pairs) a theme offers.
func (c *Catalog) Size(name string) (int, bool) {
	list, ok := c.themes[name]
	return len(list), ok
}

// Pick returns the first pairs tokens of the named theme.
func (c *Catalog) Pick(name string, pairs int) ([]game.Token, error) {
	list, ok := c.themes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTheme, name)
	}
	if pairs < game.MinPairs {
		return nil, fmt.Errorf("%w: pair count %d is below %d", game.ErrInvalidConfiguration, pairs, game.MinPairs)
	}
	if pairs > len(list) {
		return nil, fmt.Errorf("%w: %q has %d tokens, %d requested", ErrThemeTooSmall, name, len(list), pairs)
	}
	return append([]game.Token{}, list[:pairs]...), nil
}
