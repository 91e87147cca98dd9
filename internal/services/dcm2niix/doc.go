// Package dcm2niix wraps the dcm2niix command line converter.
//
// A series directory of DICOM slices becomes one NIfTI volume named after
// the directory. The binary is run synchronously; cancelling the context
// kills it.
package dcm2niix
