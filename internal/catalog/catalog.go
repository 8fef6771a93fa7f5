// Package catalog loads the list of places notes can be attached to.
//
// The note store treats a site as an opaque name and never checks it
// against the catalog; the catalog only supplies names to choose from and
// details to display.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrDuplicateSite is returned when two entries share a name.
var ErrDuplicateSite = errors.New("duplicate site name")

// ErrUnnamedSite is returned for an entry with an empty name.
var ErrUnnamedSite = errors.New("site has no name")

// Site is one point of interest.
type Site struct {
	Name      string `yaml:"name" json:"name"`
	City      string `yaml:"city" json:"city"`
	Address   string `yaml:"address" json:"address"`
	Image     string `yaml:"image" json:"image"`
	Quote     string `yaml:"quote" json:"quote"`
	Reference string `yaml:"reference" json:"reference"`
}

// Catalog is an immutable set of sites keyed by name.
type Catalog struct {
	sites  []Site
	byName map[string]int
}

type document struct {
	Sites []Site `yaml:"sites"`
}

// Parse reads a YAML catalog of the form
//
//	sites:
//	  - name: Shrine of the Báb
//	    city: Haifa
func Parse(r io.Reader) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return New(doc.Sites)
}

// Load reads a catalog file. A missing file yields an empty catalog.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// New builds a catalog from sites, rejecting empty and duplicate names.
func New(sites []Site) (*Catalog, error) {
	c := &Catalog{
		sites:  make([]Site, 0, len(sites)),
		byName: make(map[string]int, len(sites)),
	}
	for i, s := range sites {
		if s.Name == "" {
			return nil, fmt.Errorf("entry %d: %w", i, ErrUnnamedSite)
		}
		if _, dup := c.byName[s.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSite, s.Name)
		}
		c.byName[s.Name] = len(c.sites)
		c.sites = append(c.sites, s)
	}
	return c, nil
}

// Lookup finds a site by exact name.
func (c *Catalog) Lookup(name string) (Site, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Site{}, false
	}
	return c.sites[i], true
}

// Names returns every site name in alphabetical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.sites))
	for _, s := range c.sites {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// Sites returns the sites in file order.
func (c *Catalog) Sites() []Site {
	return append([]Site(nil), c.sites...)
}

// Len returns the number of sites.
func (c *Catalog) Len() int { return len(c.sites) }
