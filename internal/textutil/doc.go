// Package textutil turns free-text DICOM labels and file names into safe
// filesystem path segments.
//
// SanitizeName is the bucket and file-name sanitizer used by the organizer.
// NormalizeToken and NormalizeTokens canonicalize identifiers such as
// segmentation targets (NFKC, case folding, then SanitizeToken).
package textutil
