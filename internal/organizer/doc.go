// Package organizer copies raw DICOM slices into per-series bucket folders.
//
// Each immediate subdirectory of the input root is a subject. Every slice
// file under a subject is read for its series description and slice
// thickness, assigned a bucket named "<label>_<N>mm", and copied (never
// moved) to output/<subject>/<bucket>/. Files without a usable thickness are
// skipped; unreadable files are recorded as failures and the walk carries on.
package organizer
