// Package nuspec parses the embedded NuGet-style XML descriptor that every
// Velopack bundle carries. Parsing is pure: it never touches the filesystem,
// and it fails only on malformed XML, a missing required field, or an
// unparsable version string.
package nuspec

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/velopack/velopack/internal/velerrors"
)

// Arch enumerates the machine architectures a bundle can target.
type Arch string

const (
	ArchX86   Arch = "x86"
	ArchX64   Arch = "x64"
	ArchArm64 Arch = "arm64"
)

// OS enumerates the platforms a bundle can target.
type OS string

const (
	OSWindows OS = "win"
	OSMacOS   OS = "osx"
	OSLinux   OS = "linux"
)

// Manifest is the immutable, parsed form of a bundle's .nuspec. It is value
// data: copying a Manifest is always safe.
type Manifest struct {
	ID                  string
	Version             *semver.Version
	Title               string
	Authors             string
	Description         string
	MachineArchitecture Arch
	RuntimeDependencies []string
	MainExe             string
	OS                  OS
	OSMinVersion        string
	Channel             string
}

// legacyVersion matches the four-component major.minor.build.revision
// version strings that older Windows-style nuspecs still carry (e.g.
// "1033.980.3984.14234"). semver.NewVersion rejects these outright, so
// Parse falls back to this pattern and folds the fourth component into
// semver's build metadata instead of discarding it.
var legacyVersion = regexp.MustCompile(`^(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:\.(\d+))?$`)

func parseVersion(raw string) (*semver.Version, error) {
	if v, err := semver.NewVersion(raw); err == nil {
		return v, nil
	}

	m := legacyVersion.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("invalid version string %q", raw)
	}
	parts := [4]int{}
	for i := 1; i <= 4; i++ {
		if m[i] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i])
		if err != nil {
			return nil, fmt.Errorf("invalid version string %q", raw)
		}
		parts[i-1] = n
	}
	normalized := fmt.Sprintf("%d.%d.%d+%d", parts[0], parts[1], parts[2], parts[3])
	return semver.NewVersion(normalized)
}

// Parse reads a streaming XML event sequence and populates a Manifest by
// element local-name, the way the original nuspec reader does. It never
// validates against a schema — only id/version (and, on Windows, mainExe)
// are required.
func Parse(r io.Reader) (*Manifest, error) {
	dec := xml.NewDecoder(r)

	var m Manifest
	var rawVersion string
	var stack []string

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse nuspec: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			switch stack[len(stack)-1] {
			case "id":
				m.ID = text
			case "version":
				rawVersion = text
			case "title":
				m.Title = text
			case "authors":
				m.Authors = text
			case "description":
				m.Description = text
			case "machineArchitecture":
				m.MachineArchitecture = Arch(text)
			case "runtimeDependencies":
				m.RuntimeDependencies = splitCSV(text)
			case "mainExe":
				m.MainExe = text
			case "os":
				m.OS = OS(text)
			case "osMinVersion":
				m.OSMinVersion = text
			case "channel":
				m.Channel = text
			}
		}
	}

	if m.ID == "" {
		return nil, velerrors.NewMissingNuspecProperty("id")
	}
	if rawVersion == "" {
		return nil, velerrors.NewMissingNuspecProperty("version")
	}
	version, err := parseVersion(rawVersion)
	if err != nil {
		return nil, fmt.Errorf("nuspec version: %w", err)
	}
	m.Version = version

	if runtime.GOOS == "windows" && m.MainExe == "" {
		return nil, velerrors.NewMissingNuspecProperty("mainExe")
	}

	if m.Title == "" {
		m.Title = m.ID
	}

	return &m, nil
}

// ParseString is a convenience wrapper around Parse for callers that already
// have the nuspec contents in memory.
func ParseString(xmlText string) (*Manifest, error) {
	return Parse(strings.NewReader(xmlText))
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
