package preflight

import (
	"strings"

	"dcmorg/internal/config"
	"dcmorg/internal/deps"
	"dcmorg/internal/services"
)

// Stage names accepted by RunAll and CheckSystemDeps.
const (
	StageOrganize = "organize"
	StageConvert  = "convert"
	StageSegment  = "segment"
)

// AllStages lists every stage in pipeline order.
var AllStages = []string{StageOrganize, StageConvert, StageSegment}

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the directory checks the given stages need. No stages
// means all of them.
func RunAll(cfg *config.Config, stages ...string) []Result {
	if cfg == nil {
		return nil
	}
	if len(stages) == 0 {
		stages = AllStages
	}

	var results []Result
	for _, stage := range stages {
		switch stage {
		case StageOrganize:
			results = append(results,
				CheckReadable("Input directory", cfg.Paths.InputDir),
				CheckCreatable("Organized directory", cfg.OrganizedDir()),
			)
		case StageConvert:
			results = append(results,
				CheckReadable("Organized directory", cfg.OrganizedDir()),
				CheckCreatable("NIfTI directory", cfg.NiftiRoot()),
			)
		case StageSegment:
			results = append(results, CheckDirectoryAccess("NIfTI directory", cfg.NiftiRoot()))
		}
	}
	if strings.TrimSpace(cfg.Paths.LogDir) != "" {
		results = append(results, CheckCreatable("Log directory", cfg.Paths.LogDir))
	}
	return results
}

// CheckSystemDeps evaluates the external binaries the given stages invoke.
// No stages means all of them.
func CheckSystemDeps(cfg *config.Config, stages ...string) []deps.Status {
	if cfg == nil {
		return nil
	}
	if len(stages) == 0 {
		stages = AllStages
	}
	var requirements []deps.Requirement
	for _, stage := range stages {
		switch stage {
		case StageConvert:
			requirements = append(requirements, deps.Requirement{
				Name:        "dcm2niix",
				Command:     cfg.Dcm2niixBinary(),
				Description: "Converts DICOM series to NIfTI volumes",
				Stage:       StageConvert,
			})
		case StageSegment:
			requirements = append(requirements, deps.Requirement{
				Name:        "TotalSegmentator",
				Command:     cfg.TotalSegmentatorBinary(),
				Description: "Produces anatomical masks",
				Stage:       StageSegment,
			})
		}
	}
	return deps.CheckBinaries(requirements)
}

// Err folds failed checks and missing binaries into one configuration
// error, or returns nil when everything passed.
func Err(results []Result, statuses []deps.Status) error {
	var problems []string
	for _, r := range results {
		if !r.Passed {
			problems = append(problems, r.Name+": "+r.Detail)
		}
	}
	for _, s := range deps.Missing(statuses) {
		problems = append(problems, s.Name+": "+s.Detail)
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "check", strings.Join(problems, "; "), nil)
}
