package phibia

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/k3a/html2text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
)

const catalogCacheKey = "species"

// SpeciesInfo is one catalog entry from /informacion/especies.
type SpeciesInfo struct {
	ScientificName string `json:"nombre_cientifico"`
	CommonName     string `json:"nombre_comun"`
	Description    string `json:"descripcion"`
	Image          string `json:"imagen"`
	Audio          string `json:"audio"`
}

// PlainDescription returns the description with any HTML markup removed.
func (s *SpeciesInfo) PlainDescription() string {
	return strings.TrimSpace(html2text.HTML2Text(s.Description))
}

// ErrSpeciesNotFound is returned by FindSpecies when nothing matches.
var ErrSpeciesNotFound = errors.NewStd("species not found")

// Species returns the catalog. Results are cached; concurrent callers share one request.
func (c *Client) Species(ctx context.Context) ([]SpeciesInfo, error) {
	if cached, ok := c.catalog.Get(catalogCacheKey); ok {
		return cached.([]SpeciesInfo), nil
	}

	v, err, shared := c.catalogGroup.Do(catalogCacheKey, func() (any, error) {
		if cached, ok := c.catalog.Get(catalogCacheKey); ok {
			return cached, nil
		}
		var species []SpeciesInfo
		if err := c.doJSON(ctx, "list_species", http.MethodGet, c.endpoint("informacion", "especies"), nil, &species, false); err != nil {
			return nil, err
		}
		if species == nil {
			species = []SpeciesInfo{}
		}
		c.catalog.SetDefault(catalogCacheKey, species)
		return species, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Trace("species catalog request shared")
	}
	c.log.Debug("species catalog loaded", logger.Int("count", len(v.([]SpeciesInfo))))
	return v.([]SpeciesInfo), nil
}

// InvalidateSpecies drops the cached catalog.
func (c *Client) InvalidateSpecies() {
	c.catalog.Delete(catalogCacheKey)
}

// FindSpecies looks up a catalog entry by scientific name. The query may be a
// model label ("1-Odontophrynus_asper"), URL-encoded, or use underscores.
func (c *Client) FindSpecies(ctx context.Context, query string) (*SpeciesInfo, error) {
	catalog, err := c.Species(ctx)
	if err != nil {
		return nil, err
	}
	if match := MatchSpecies(catalog, query); match != nil {
		return match, nil
	}
	return nil, errors.New(ErrSpeciesNotFound).
		Component("phibia-api").
		Category(errors.CategoryNotFound).
		Context("query", query).
		Build()
}

// MatchSpecies returns the first entry whose normalized scientific name equals
// the normalized query, or contains it, or is contained in it.
func MatchSpecies(catalog []SpeciesInfo, query string) *SpeciesInfo {
	label := ParseSpeciesLabel(query)
	needle := NormalizeSpeciesName(label.Name)
	if needle == "" {
		return nil
	}

	for i := range catalog {
		if NormalizeSpeciesName(catalog[i].ScientificName) == needle {
			return &catalog[i]
		}
	}
	for i := range catalog {
		name := NormalizeSpeciesName(catalog[i].ScientificName)
		if name == "" {
			continue
		}
		if strings.Contains(name, needle) || strings.Contains(needle, name) {
			return &catalog[i]
		}
	}
	return nil
}

var spaceRun = regexp.MustCompile(`\s+`)

// NormalizeSpeciesName lowercases, maps "_", "+" and "%20" to spaces,
// collapses whitespace and strips accents.
func NormalizeSpeciesName(name string) string {
	name = strings.NewReplacer("%20", " ", "+", " ", "_", " ").Replace(name)

	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(stripAccents, name); err == nil {
		name = stripped
	}

	// Casers hold state, so one is created per call
	name = cases.Lower(language.Und).String(name)
	return strings.TrimSpace(spaceRun.ReplaceAllString(name, " "))
}

// ImageURL returns the absolute URL of a species image.
func (c *Client) ImageURL(image string) string {
	if image == "" {
		return ""
	}
	return c.endpoint("species", image)
}
