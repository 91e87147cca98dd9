// Package progress reports batch advancement, one step per subject.
//
// On a terminal the bar is drawn with go-pretty's progress writer; anywhere
// else (log files, CI, pipes) progress becomes sampled log lines so the
// output stays readable.
package progress
