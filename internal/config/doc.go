// Package config loads, normalizes, and validates dcmorg configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. Directory layout follows the conventions of
// the original batch scripts: the organized tree defaults to "<input>_output"
// and the NIfTI tree to "<output>_nii" unless set explicitly.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical enum values, and clear validation errors.
package config
