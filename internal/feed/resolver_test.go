package feed

import (
	"testing"

	"github.com/Masterminds/semver/v3"

	"github.com/velopack/velopack/internal/nuspec"
)

func manifest(t *testing.T, version, channel string) *nuspec.Manifest {
	t.Helper()
	v, err := semver.NewVersion(version)
	if err != nil {
		t.Fatalf("semver.NewVersion(%q): %v", version, err)
	}
	return &nuspec.Manifest{ID: "MyApp", Version: v, Channel: channel}
}

func TestEffectiveChannelPrecedence(t *testing.T) {
	cases := []struct {
		name     string
		opts     ResolveOptions
		appChan  string
		wantChan string
	}{
		{"explicit wins", ResolveOptions{ExplicitChannel: "beta"}, "stable", "beta"},
		{"app channel used when no explicit", ResolveOptions{}, "beta", "beta"},
		{"platform default when both empty", ResolveOptions{}, "", defaultChannel()},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			app := manifest(t, "1.0.0", c.appChan)
			got := EffectiveChannel(c.opts, app)
			if got != c.wantChan {
				t.Fatalf("EffectiveChannel() = %q, want %q", got, c.wantChan)
			}
		})
	}
}

func TestResolveNoAssetsErrors(t *testing.T) {
	_, err := Resolve(&AssetFeed{}, manifest(t, "1.0.0", ""), ResolveOptions{})
	if err == nil {
		t.Fatal("expected an error for a feed with zero assets")
	}
}

func TestResolveNoFullReleaseErrors(t *testing.T) {
	feedData := &AssetFeed{Assets: []Asset{{Type: "Delta", Version: "2.0.0", FileName: "d.nupkg"}}}
	_, err := Resolve(feedData, manifest(t, "1.0.0", ""), ResolveOptions{})
	if err == nil {
		t.Fatal("expected an error when no full release is present")
	}
}

func TestResolveNewerVersionAvailableSelectsItAsUpgrade(t *testing.T) {
	feedData := &AssetFeed{Assets: []Asset{
		{Type: "Full", Version: "1.0.0", FileName: "App-1.0.0-win-Full.nupkg"},
		{Type: "Full", Version: "2.0.0", FileName: "App-2.0.0-win-Full.nupkg"},
	}}
	info, err := Resolve(feedData, manifest(t, "1.0.0", ""), ResolveOptions{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info == nil {
		t.Fatal("expected an update to be available")
	}
	if info.TargetFullRelease.Version != "2.0.0" {
		t.Fatalf("TargetFullRelease.Version = %q, want 2.0.0", info.TargetFullRelease.Version)
	}
	if info.IsDowngrade {
		t.Fatal("a newer version should never be reported as a downgrade")
	}
}

func TestResolveSameVersionSameChannelReturnsNoUpdate(t *testing.T) {
	feedData := &AssetFeed{Assets: []Asset{{Type: "Full", Version: "1.0.0", FileName: "App-1.0.0-win-Full.nupkg"}}}
	info, err := Resolve(feedData, manifest(t, "1.0.0", ""), ResolveOptions{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info != nil {
		t.Fatalf("expected no update, got %+v", info)
	}
}

func TestResolveOlderVersionWithoutDowngradeAllowedReturnsNoUpdate(t *testing.T) {
	feedData := &AssetFeed{Assets: []Asset{{Type: "Full", Version: "1.0.0", FileName: "App-1.0.0-win-Full.nupkg"}}}
	info, err := Resolve(feedData, manifest(t, "2.0.0", ""), ResolveOptions{AllowVersionDowngrade: false})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info != nil {
		t.Fatalf("expected no update without AllowVersionDowngrade, got %+v", info)
	}
}

func TestResolveOlderVersionWithDowngradeAllowedSelectsIt(t *testing.T) {
	feedData := &AssetFeed{Assets: []Asset{{Type: "Full", Version: "1.0.0", FileName: "App-1.0.0-win-Full.nupkg"}}}
	info, err := Resolve(feedData, manifest(t, "2.0.0", ""), ResolveOptions{AllowVersionDowngrade: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info == nil {
		t.Fatal("expected a downgrade to be selected")
	}
	if !info.IsDowngrade {
		t.Fatal("expected IsDowngrade to be true")
	}
}

func TestResolveSameVersionDifferentChannelWithDowngradeAllowedSwitches(t *testing.T) {
	feedData := &AssetFeed{Assets: []Asset{{Type: "Full", Version: "1.0.0", FileName: "App-1.0.0-beta-Full.nupkg"}}}
	info, err := Resolve(feedData, manifest(t, "1.0.0", "stable"), ResolveOptions{ExplicitChannel: "beta", AllowVersionDowngrade: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info == nil {
		t.Fatal("expected a channel switch at the same version to be treated as selectable")
	}
	if !info.IsDowngrade {
		t.Fatal("a same-version channel switch with downgrades allowed should be flagged as a downgrade")
	}
}

func TestResolveSameVersionDifferentChannelWithoutDowngradeAllowedNoOp(t *testing.T) {
	feedData := &AssetFeed{Assets: []Asset{{Type: "Full", Version: "1.0.0", FileName: "App-1.0.0-beta-Full.nupkg"}}}
	info, err := Resolve(feedData, manifest(t, "1.0.0", "stable"), ResolveOptions{ExplicitChannel: "beta"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info != nil {
		t.Fatalf("expected no update without AllowVersionDowngrade, got %+v", info)
	}
}

func TestResolveAttachesDeltaChainWhenBaseAndDeltasPresent(t *testing.T) {
	feedData := &AssetFeed{Assets: []Asset{
		{Type: "Full", Version: "1.0.0", FileName: "App-1.0.0-win-Full.nupkg"},
		{Type: "Full", Version: "3.0.0", FileName: "App-3.0.0-win-Full.nupkg"},
		{Type: "Delta", Version: "3.0.0", FileName: "App-3.0.0-win-Delta.nupkg"},
		{Type: "Delta", Version: "2.0.0", FileName: "App-2.0.0-win-Delta.nupkg"},
	}}
	info, err := Resolve(feedData, manifest(t, "1.0.0", ""), ResolveOptions{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info == nil {
		t.Fatal("expected an update")
	}
	if info.BaseRelease == nil || info.BaseRelease.Version != "1.0.0" {
		t.Fatalf("BaseRelease = %+v, want version 1.0.0", info.BaseRelease)
	}
	if len(info.DeltasToTarget) != 2 {
		t.Fatalf("DeltasToTarget = %+v, want 2 entries", info.DeltasToTarget)
	}
	if info.DeltasToTarget[0].Version != "2.0.0" || info.DeltasToTarget[1].Version != "3.0.0" {
		t.Fatalf("DeltasToTarget not sorted ascending: %+v", info.DeltasToTarget)
	}
}

func TestResolveFallsBackToFullWhenNoBaseRelease(t *testing.T) {
	feedData := &AssetFeed{Assets: []Asset{
		{Type: "Full", Version: "3.0.0", FileName: "App-3.0.0-win-Full.nupkg"},
		{Type: "Delta", Version: "3.0.0", FileName: "App-3.0.0-win-Delta.nupkg"},
	}}
	info, err := Resolve(feedData, manifest(t, "1.0.0", ""), ResolveOptions{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info == nil {
		t.Fatal("expected an update")
	}
	if info.BaseRelease != nil || len(info.DeltasToTarget) != 0 {
		t.Fatalf("expected a full-package-only plan without a matching base release, got base=%+v deltas=%+v", info.BaseRelease, info.DeltasToTarget)
	}
}

func TestResolveFallsBackToFullWhenDeltaChainExceedsMax(t *testing.T) {
	assets := []Asset{
		{Type: "Full", Version: "1.0.0", FileName: "App-1.0.0-win-Full.nupkg"},
		{Type: "Full", Version: "3.0.0", FileName: "App-3.0.0-win-Full.nupkg"},
		{Type: "Delta", Version: "2.0.0", FileName: "App-2.0.0-win-Delta.nupkg"},
		{Type: "Delta", Version: "3.0.0", FileName: "App-3.0.0-win-Delta.nupkg"},
	}
	info, err := Resolve(&AssetFeed{Assets: assets}, manifest(t, "1.0.0", ""), ResolveOptions{MaximumDeltasBeforeFallback: 1})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info.BaseRelease != nil || len(info.DeltasToTarget) != 0 {
		t.Fatalf("expected fallback to full-only plan when delta count exceeds the max, got base=%+v deltas=%+v", info.BaseRelease, info.DeltasToTarget)
	}
}
