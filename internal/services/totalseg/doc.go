// Package totalseg wraps the TotalSegmentator command line tool.
package totalseg
