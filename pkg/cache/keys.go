package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Keyer derives cache keys.
type Keyer interface {
	LayoutKey(snapshotHash string, opts LayoutKeyOpts) string
	ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string
}

// LayoutKeyOpts are the inputs besides the snapshot that change a layout.
type LayoutKeyOpts struct {
	HStep        float64 `json:"h_step"`
	VStep        float64 `json:"v_step"`
	SpouseOffset float64 `json:"spouse_offset"`
}

// ArtifactKeyOpts are the inputs besides the layout that change a rendering.
type ArtifactKeyOpts struct {
	Format     string  `json:"format"`
	Renderer   string  `json:"renderer,omitempty"`
	Engine     string  `json:"engine,omitempty"`
	Detailed   bool    `json:"detailed,omitempty"`
	Title      string  `json:"title,omitempty"`
	BirthDates bool    `json:"birth_dates,omitempty"`
	Scale      float64 `json:"scale,omitempty"`
}

// Hash returns the hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// digestKey returns kind + ":" + Hash of the JSON encoding of base and opts.
// Options structs always marshal, so the error is dropped.
func digestKey(kind, base string, opts any) string {
	b, _ := json.Marshal(struct {
		Base string `json:"base"`
		Opts any    `json:"opts"`
	}{base, opts})
	return kind + ":" + Hash(b)
}

// DefaultKeyer hashes key inputs with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// LayoutKey returns "layout:<hash>".
func (DefaultKeyer) LayoutKey(snapshotHash string, opts LayoutKeyOpts) string {
	return digestKey("layout", snapshotHash, opts)
}

// ArtifactKey returns "artifact:<hash>".
func (DefaultKeyer) ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string {
	return digestKey("artifact", layoutHash, opts)
}

// SpacePrefix returns the key prefix used for a family space.
func SpacePrefix(spaceID string) string {
	return "space:" + spaceID + ":"
}

// ScopedKeyer puts every key of an inner Keyer under a prefix, giving each
// family space its own namespace.
//
//	k := NewScopedKeyer(NewDefaultKeyer(), SpacePrefix("smiths"))
type ScopedKeyer struct {
	Inner  Keyer
	Prefix string
}

// NewScopedKeyer wraps inner (DefaultKeyer when nil) with prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = DefaultKeyer{}
	}
	return ScopedKeyer{Inner: inner, Prefix: prefix}
}

func (k ScopedKeyer) LayoutKey(snapshotHash string, opts LayoutKeyOpts) string {
	return k.Prefix + k.Inner.LayoutKey(snapshotHash, opts)
}

func (k ScopedKeyer) ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string {
	return k.Prefix + k.Inner.ArtifactKey(layoutHash, opts)
}
