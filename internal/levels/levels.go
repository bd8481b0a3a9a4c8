// internal/levels/levels.go
//
// Preset level management.
//
// Responsibilities:
//   - Load named level texts from a file or fall back to the embedded list.
//   - Validate each level by parsing it into a game.Layout.
//   - Supply lookups by name and a sorted list of names.
//
// File format (one level per line):
//   <name> <level text>
// where the level text is row-major '0'/'1' characters ('1' = mine) whose
// length is a perfect square. Blank lines and lines starting with '#' are
// ignored.
//
// Sources:
//   1. If a path is given (LEVELS_FILE), that file is read.
//   2. Otherwise the list embedded in the assets package is used.

package levels

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/robalobadob/minesweeper/assets"
	"github.com/robalobadob/minesweeper/internal/game"
)

// ErrUnknownLevel is returned by Catalog.Layout for names not in the catalog.
var ErrUnknownLevel = errors.New("unknown level")

// Catalog maps level names to their validated level text.
type Catalog struct {
	texts map[string]string
	sizes map[string]int
}

// Load reads the catalog from path, or from the embedded list when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		text, err := assets.LevelsText()
		if err != nil {
			return nil, fmt.Errorf("read embedded levels: %w", err)
		}
		return Parse(strings.NewReader(text))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads "<name> <level text>" lines from r. Every level must parse into a
// valid layout and names must be unique.
func Parse(r io.Reader) (*Catalog, error) {
	c := &Catalog{texts: make(map[string]string), sizes: make(map[string]int)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		fields := strings.Fields(s)
		if len(fields) != 2 {
			return nil, fmt.Errorf("levels line %d: want \"<name> <level text>\"", line)
		}
		name, text := strings.ToLower(fields[0]), fields[1]
		if _, dup := c.texts[name]; dup {
			return nil, fmt.Errorf("levels line %d: duplicate level %q", line, name)
		}
		l, err := game.ParseLayout(text)
		if err != nil {
			return nil, fmt.Errorf("levels line %d (%s): %w", line, name, err)
		}
		c.texts[name] = text
		c.sizes[name] = l.Size()
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// Layout builds a fresh layout for the named level.
func (c *Catalog) Layout(name string) (*game.Layout, error) {
	text, ok := c.texts[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
	}
	return game.ParseLayout(text)
}

// Info describes one preset for listing.
type Info struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// List returns every level sorted by name.
func (c *Catalog) List() []Info {
	out := make([]Info, 0, len(c.texts))
	for name := range c.texts {
		out = append(out, Info{Name: name, Size: c.sizes[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of levels loaded.
func (c *Catalog) Len() int { return len(c.texts) }
