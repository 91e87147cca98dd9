// Package dicommeta reads the handful of DICOM attributes the organizer keys
// on: SeriesDescription (the bucket label) and SliceThickness (the grouping
// value).
//
// Reader is the seam the organizer depends on; DICOMReader is the production
// implementation backed by github.com/suyashkumar/dicom. Parsing stops short
// of pixel data so large slices cost little more than their header.
package dicommeta
