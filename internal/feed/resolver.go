package feed

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/velopack/velopack/internal/nuspec"
)

// DefaultMaximumDeltasBeforeFallback caps how many deltas the resolver will
// chain before giving up and falling back to a full-package download.
const DefaultMaximumDeltasBeforeFallback = 10

// ResolveOptions parameterizes Resolve; the zero value uses platform
// defaults and disallows downgrades.
type ResolveOptions struct {
	// ExplicitChannel overrides app.Channel when non-empty.
	ExplicitChannel string
	// AllowVersionDowngrade permits the resolver to select an older (or
	// same-version, different-channel) release.
	AllowVersionDowngrade bool
	// MaximumDeltasBeforeFallback bounds the delta chain length; zero means
	// DefaultMaximumDeltasBeforeFallback.
	MaximumDeltasBeforeFallback int
}

func defaultChannel() string {
	switch runtime.GOOS {
	case "windows":
		return "win"
	case "darwin":
		return "osx"
	default:
		return "linux"
	}
}

// EffectiveChannel determines which channel to resolve against: explicit
// override, then the app's own channel, then the platform default.
func EffectiveChannel(opts ResolveOptions, app *nuspec.Manifest) string {
	if opts.ExplicitChannel != "" {
		return opts.ExplicitChannel
	}
	if app.Channel != "" {
		return app.Channel
	}
	return defaultChannel()
}

// Resolve selects the best candidate release from feed given the currently
// installed app manifest and resolve options. A nil, nil return means "no
// update available" — not an error.
func Resolve(feedData *AssetFeed, app *nuspec.Manifest, opts ResolveOptions) (*UpdateInfo, error) {
	if len(feedData.Assets) == 0 {
		return nil, fmt.Errorf("feed: zero assets found in releases feed")
	}

	channel := EffectiveChannel(opts, app)
	nonDefaultChannel := channel != app.Channel

	target, targetVersion, err := latestFull(feedData.Assets)
	if err != nil {
		return nil, err
	}

	cmp := targetVersion.Compare(app.Version)

	var isDowngrade bool
	switch {
	case cmp > 0:
		isDowngrade = false
	case cmp < 0 && opts.AllowVersionDowngrade:
		isDowngrade = true
	case cmp == 0 && opts.AllowVersionDowngrade && nonDefaultChannel:
		isDowngrade = true
	default:
		return nil, nil
	}

	info := &UpdateInfo{
		TargetFullRelease: *target,
		IsDowngrade:       isDowngrade,
	}

	attachDeltaChain(info, feedData.Assets, app, targetVersion, opts)

	return info, nil
}

// latestFull returns the highest-version asset whose Type is Full
// (case-insensitive), first-seen wins on ties.
func latestFull(assets []Asset) (*Asset, *semver.Version, error) {
	var best *Asset
	var bestVersion *semver.Version

	for i := range assets {
		a := &assets[i]
		if !a.IsFull() {
			continue
		}
		v, err := semver.NewVersion(a.Version)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(bestVersion) {
			best = a
			bestVersion = v
		}
	}

	if best == nil {
		return nil, nil, fmt.Errorf("feed: no full release present")
	}
	return best, bestVersion, nil
}

// attachDeltaChain looks for deltas strictly after app.Version up through
// targetVersion, plus a base full release matching app.Version exactly. If
// the chain is short enough and a base exists, it's attached to info;
// otherwise info is left with a full-package-only plan.
func attachDeltaChain(info *UpdateInfo, assets []Asset, app *nuspec.Manifest, targetVersion *semver.Version, opts ResolveOptions) {
	maxDeltas := opts.MaximumDeltasBeforeFallback
	if maxDeltas <= 0 {
		maxDeltas = DefaultMaximumDeltasBeforeFallback
	}

	var base *Asset
	var deltas []Asset

	for i := range assets {
		a := &assets[i]
		v, err := semver.NewVersion(a.Version)
		if err != nil {
			continue
		}
		if a.IsFull() && v.Equal(app.Version) {
			base = a
			continue
		}
		if a.IsDelta() && v.GreaterThan(app.Version) && v.Compare(targetVersion) <= 0 {
			deltas = append(deltas, *a)
		}
	}

	if base == nil || len(deltas) == 0 || len(deltas) > maxDeltas {
		return
	}

	sort.Slice(deltas, func(i, j int) bool {
		vi, _ := semver.NewVersion(deltas[i].Version)
		vj, _ := semver.NewVersion(deltas[j].Version)
		return vi.LessThan(vj)
	})

	info.BaseRelease = base
	info.DeltasToTarget = deltas
}
