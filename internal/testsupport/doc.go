// Package testsupport holds fixtures shared by package tests: temp-dir backed
// configs, sized placeholder files, and minimal DICOM slice files.
package testsupport
