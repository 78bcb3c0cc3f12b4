package presentation

import "fmt"

// Species is one of the amphibians the model recognises, in label order.
type Species struct {
	ID          int
	Asset       string // image base name, e.g. "BoanaPulchella"
	ShadowAsset string // silhouette file name when it does not follow the usual pattern
}

// Shadow returns the silhouette image shown before the species is revealed.
func (s Species) Shadow() string {
	if s.ShadowAsset != "" {
		return "speciesShadow/" + s.ShadowAsset
	}
	return fmt.Sprintf("speciesShadow/%sShadow%d.png", s.Asset, s.ID)
}

// Image returns the species illustration.
func (s Species) Image() string {
	return fmt.Sprintf("species/%s%d.png", s.Asset, s.ID)
}

var catalog = []Species{
	{ID: 1, Asset: "RhinellaArenarum"},
	{ID: 2, Asset: "OdontophrynusAsper"},
	{ID: 3, Asset: "BoanaPulchella"},
	{ID: 4, Asset: "CeratophrysCranwelli"},
	{ID: 5, Asset: "LeptodactylusGracilis"},
	{ID: 6, Asset: "LeptodactylusLatinasus"},
	{ID: 7, Asset: "LeptodactylusLuctator"},
	{ID: 8, Asset: "LeptodactylusMystacinus"},
	{ID: 9, Asset: "PleurodemaTucumanum"},
	{ID: 10, Asset: "ScinaxNasicus"},
	{ID: 11, Asset: "PhysalaemusBiligonigerus", ShadowAsset: "PhysalaemusBiligonigerus11Shadow.png"},
}

// Catalog returns the recognised species.
func Catalog() []Species {
	out := make([]Species, len(catalog))
	copy(out, catalog)
	return out
}

// SpeciesByID returns the species for a 1-based label id.
func SpeciesByID(id int) (Species, bool) {
	if id < 1 || id > len(catalog) {
		return Species{}, false
	}
	return catalog[id-1], true
}
