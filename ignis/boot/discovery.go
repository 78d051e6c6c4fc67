package boot

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/ignis-framework/ignis/ignis/container"
)

// ArtifactSpec tells the discovery booter where to look for one kind of
// artifact and which file extensions qualify.
type ArtifactSpec struct {
	Dirs       []string
	Extensions []string
	// Load maps a discovered file path to a bindable artifact. Go has no
	// runtime "import this file" primitive (unlike a dynamic-language
	// decorator registry), so the discovery booter is a thin enumeration +
	// user-supplied loader rather than true dynamic import.
	Load func(path string) (className string, artifact any, err error)
}

// ArtifactReport summarizes one artifact kind's discovery run.
type ArtifactReport struct {
	Discovered int
	Loaded     int
	Errors     int
	Files      []string
}

// Report is returned by Discover, mirroring spec §4.3's discovery booter
// report shape.
type Report struct {
	Duration    time.Duration
	Artifacts   map[string]ArtifactReport
	Phases      []string
	Success     bool
	TotalLoaded int
	TotalErrors int
}

// Discover enumerates files per spec in specs (keyed by artifact-kind),
// loads each via its Load func, and binds the result into c under
// "namespace.<ClassName>" with namespace equal to the artifact kind.
func Discover(c *container.Container, specs map[string]ArtifactSpec) Report {
	start := time.Now()
	report := Report{Artifacts: make(map[string]ArtifactReport), Success: true}

	kinds := make([]string, 0, len(specs))
	for kind := range specs {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		spec := specs[kind]
		ar := ArtifactReport{}
		var files []string
		for _, dir := range spec.Dirs {
			for _, ext := range spec.Extensions {
				matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
				if err != nil {
					continue
				}
				files = append(files, matches...)
			}
		}
		sort.Strings(files)
		ar.Discovered = len(files)
		ar.Files = files

		for _, f := range files {
			className, artifact, err := spec.Load(f)
			if err != nil {
				ar.Errors++
				report.Success = false
				continue
			}
			c.Bind(kind + "." + className).ToValue(artifact)
			ar.Loaded++
		}

		report.TotalLoaded += ar.Loaded
		report.TotalErrors += ar.Errors
		report.Phases = append(report.Phases, kind)
		report.Artifacts[kind] = ar
	}

	report.Duration = time.Since(start)
	return report
}
