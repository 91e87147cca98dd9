// Package segmenter runs TotalSegmentator over converted volumes.
//
// A volume can be segmented in one multi-label call covering every target
// (combined) or in one call per target (per_target), which keeps peak memory
// at a single model. The batch runs whichever granularities are configured
// and stops at the first error.
package segmenter
