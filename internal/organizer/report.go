package organizer

import (
	"fmt"
	"sort"
)

// Outcome classifies what happened to one slice file.
type Outcome int

const (
	OutcomeCopied Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCopied:
		return "copied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// FileResult is the outcome for a single source file.
type FileResult struct {
	Subject     string
	Source      string
	Bucket      string
	Destination string
	Outcome     Outcome
	// Reason explains a skip, or why a copy landed under a suffixed name.
	Reason string
	Err    error
}

// SubjectReport aggregates the results of one subject.
type SubjectReport struct {
	Name    string
	Total   int
	Copied  int
	Skipped int
	Failed  int
	// Buckets counts copied files per bucket name.
	Buckets map[string]int
}

// BucketNames returns the subject's bucket names in sorted order.
func (s SubjectReport) BucketNames() []string {
	names := make([]string, 0, len(s.Buckets))
	for name := range s.Buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Report is the result of one OrganizeAll run.
type Report struct {
	InputDir  string
	OutputDir string
	Subjects  []SubjectReport
	Failures  []FileResult
	Total     int
	Copied    int
	Skipped   int
	Failed    int
}

// Processed returns the number of files copied into a bucket.
func (r Report) Processed() int {
	return r.Copied
}

// Summary renders the processed/total line.
func (r Report) Summary() string {
	return fmt.Sprintf("processed %d/%d files (%d skipped, %d failed)", r.Processed(), r.Total, r.Skipped, r.Failed)
}

func (r *Report) startSubject(name string) int {
	r.Subjects = append(r.Subjects, SubjectReport{Name: name, Buckets: map[string]int{}})
	return len(r.Subjects) - 1
}

func (r *Report) record(index int, result FileResult) {
	subject := &r.Subjects[index]
	r.Total++
	subject.Total++
	switch result.Outcome {
	case OutcomeCopied:
		r.Copied++
		subject.Copied++
		subject.Buckets[result.Bucket]++
	case OutcomeSkipped:
		r.Skipped++
		subject.Skipped++
	case OutcomeFailed:
		r.Failed++
		subject.Failed++
		r.Failures = append(r.Failures, result)
	}
}
