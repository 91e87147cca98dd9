// Package converter drives dcm2niix over an organized tree.
//
// Every subject directory under the organized root is visited in name
// order. Subjects with too few entries are treated as incomplete and
// skipped. Each series directory of a subject becomes
// nii_root/<subject>/<series>/<series>.nii.gz; the first failing series
// abandons the rest of that subject and the batch moves on.
package converter
