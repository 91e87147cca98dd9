package segmenter

import (
	"strings"

	"dcmorg/internal/config"
	"dcmorg/internal/textutil"
)

// NormalizeROIs canonicalizes targets with textutil.NormalizeTokens. An empty
// result falls back to config.DefaultROIs.
func NormalizeROIs(rois []string) []string {
	out := textutil.NormalizeTokens(rois)
	if len(out) == 0 {
		out = append(out, config.DefaultROIs...)
	}
	return out
}

// Granularities expands a granularity setting into the passes to run.
func Granularities(value string) ([]string, bool) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_") {
	case config.GranularityCombined:
		return []string{config.GranularityCombined}, true
	case config.GranularityPerTarget:
		return []string{config.GranularityPerTarget}, true
	case config.GranularityBoth, "":
		return []string{config.GranularityCombined, config.GranularityPerTarget}, true
	default:
		return nil, false
	}
}
