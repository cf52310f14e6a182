// Package feed defines the release-feed wire format and the resolver that
// turns a feed plus the currently installed manifest into an UpdateInfo.
package feed

import "strings"

// AssetType distinguishes a self-contained release from a dictionary-patch
// delta against a prior full release.
type AssetType string

const (
	AssetFull  AssetType = "Full"
	AssetDelta AssetType = "Delta"
)

// EqualFold reports whether t names the same asset type as other,
// case-insensitively — feeds in the wild are inconsistent about casing.
func (t AssetType) EqualFold(other string) bool {
	return strings.EqualFold(string(t), other)
}

// Asset is one entry in a release feed. Field names match the wire format
// exactly (releases.<channel>.json), not Go conventions, because the JSON
// tags must match what the authoring tool emits.
type Asset struct {
	PackageID     string `json:"PackageId"`
	Version       string `json:"Version"`
	Type          string `json:"Type"`
	FileName      string `json:"FileName"`
	SHA1          string `json:"SHA1"`
	SHA256        string `json:"SHA256"`
	Size          int64  `json:"Size"`
	NotesMarkdown string `json:"NotesMarkdown,omitempty"`
	NotesHTML     string `json:"NotesHtml,omitempty"`
}

// IsFull reports whether this asset is a self-contained full package.
func (a *Asset) IsFull() bool {
	return AssetFull.EqualFold(a.Type)
}

// IsDelta reports whether this asset is a dictionary-patch delta.
func (a *Asset) IsDelta() bool {
	return AssetDelta.EqualFold(a.Type)
}

// AssetFeed is the top-level shape of releases.<channel>.json. Order is not
// authoritative — the resolver always re-sorts by version.
type AssetFeed struct {
	Assets []Asset `json:"Assets"`
}

// UpdateInfo is the resolver's output: what to fetch and apply to bring the
// installation up to (or down to) the target version.
type UpdateInfo struct {
	TargetFullRelease Asset
	BaseRelease       *Asset
	DeltasToTarget    []Asset
	IsDowngrade       bool
}
