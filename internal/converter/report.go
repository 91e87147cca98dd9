package converter

import "fmt"

// SubjectResult describes the conversion of one subject.
type SubjectResult struct {
	Subject string
	Skipped bool
	// Series is the number of series units found.
	Series  int
	Volumes []string
	// FailedSeries names the series that stopped the subject.
	FailedSeries string
	Err          error
}

// Report aggregates a ConvertAll run.
type Report struct {
	InputDir        string
	OutputDir       string
	Subjects        []SubjectResult
	SubjectsSkipped int
	SubjectsFailed  int
	Series          int
	Converted       int
}

// Summary renders the processed/total series line.
func (r Report) Summary() string {
	return fmt.Sprintf("converted %d/%d series (%d subjects skipped, %d failed)", r.Converted, r.Series, r.SubjectsSkipped, r.SubjectsFailed)
}

// Failures returns the subjects that did not convert cleanly.
func (r Report) Failures() []SubjectResult {
	var out []SubjectResult
	for _, s := range r.Subjects {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

func (r *Report) record(result SubjectResult) {
	r.Subjects = append(r.Subjects, result)
	r.Series += result.Series
	r.Converted += len(result.Volumes)
	if result.Skipped {
		r.SubjectsSkipped++
	}
	if result.Err != nil {
		r.SubjectsFailed++
	}
}
