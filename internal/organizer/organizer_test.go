package organizer

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dcmorg/internal/dicommeta"
	"dcmorg/internal/runlock"
	"dcmorg/internal/services"
	"dcmorg/internal/testsupport"
)

type fakeReader struct {
	infos map[string]dicommeta.SliceInfo
	reads []string
}

func (f *fakeReader) Read(path string) (dicommeta.SliceInfo, error) {
	f.reads = append(f.reads, path)
	info, ok := f.infos[filepath.Base(path)]
	if !ok {
		return dicommeta.SliceInfo{}, services.Wrap(services.ErrMetadata, "metadata", "parse", path, errors.New("not a DICOM file"))
	}
	info.Path = path
	return info, nil
}

type recordingProgress struct {
	started  int
	total    int
	advanced int
	finished int
}

func (r *recordingProgress) Start(_ string, total int) {
	r.started++
	r.total = total
}

func (r *recordingProgress) Advance() { r.advanced++ }

func (r *recordingProgress) Finish() { r.finished++ }

func TestOrganizeAllIsolatesFailures(t *testing.T) {
	input := filepath.Join(t.TempDir(), "scans")
	testsupport.WriteFile(t, filepath.Join(input, "P001", "good.dcm"), 64)
	testsupport.WriteFile(t, filepath.Join(input, "P001", "broken.dcm"), 64)
	testsupport.WriteFile(t, filepath.Join(input, "P001", "scout.dcm"), 64)
	testsupport.WriteFile(t, filepath.Join(input, "P001", "notes.txt"), 8)
	testsupport.WriteFile(t, filepath.Join(input, "P001", "series2", "upper.DCM"), 64)
	testsupport.WriteFile(t, filepath.Join(input, "P002", "nan.dcm"), 64)
	testsupport.WriteFile(t, filepath.Join(input, "P002", "thin slice.dcm"), 64)

	reader := &fakeReader{infos: map[string]dicommeta.SliceInfo{
		"good.dcm":       {Label: "Liver Scan", Thickness: 1.25, HasThickness: true},
		"scout.dcm":      {Label: "Scout", Thickness: 0, HasThickness: true},
		"upper.DCM":      {Label: "Liver Scan", Thickness: 5, HasThickness: true},
		"nan.dcm":        {Label: "Broken", Thickness: math.NaN(), HasThickness: true},
		"thin slice.dcm": {Label: "AX/CE", Thickness: 0.625, HasThickness: true},
	}}
	prog := &recordingProgress{}

	org := New(Options{InputDir: input, Reader: reader, Progress: prog})
	report, err := org.OrganizeAll(context.Background())
	if err != nil {
		t.Fatalf("OrganizeAll: %v", err)
	}

	if report.Total != 6 || report.Copied != 3 || report.Skipped != 1 || report.Failed != 2 {
		t.Fatalf("unexpected totals: %+v", report)
	}
	if report.Processed() != 3 {
		t.Fatalf("Processed = %d", report.Processed())
	}
	if report.Summary() != "processed 3/6 files (1 skipped, 2 failed)" {
		t.Fatalf("unexpected summary %q", report.Summary())
	}
	if len(reader.reads) != 6 {
		t.Fatalf("expected 6 reads (txt ignored), got %v", reader.reads)
	}

	output := input + "_output"
	if org.OutputDir() != output {
		t.Fatalf("OutputDir = %q", org.OutputDir())
	}
	for _, rel := range []string{
		"P001/Liver_Scan_1mm/good.dcm",
		"P001/Liver_Scan_5mm/upper.DCM",
		"P002/AX_CE_0mm/thin_slice.dcm",
	} {
		if _, err := os.Stat(filepath.Join(output, rel)); err != nil {
			t.Fatalf("expected %s: %v", rel, err)
		}
	}
	for _, name := range []string{"broken.dcm", "scout.dcm", "nan.dcm", "notes.txt"} {
		if found := findFile(t, output, name); found != "" {
			t.Fatalf("%s must not be copied, found at %s", name, found)
		}
	}

	kinds := map[string]bool{}
	for _, failure := range report.Failures {
		if failure.Outcome != OutcomeFailed || failure.Err == nil {
			t.Fatalf("bad failure entry %+v", failure)
		}
		kinds[filepath.Base(failure.Source)] = true
	}
	if !kinds["broken.dcm"] || !kinds["nan.dcm"] {
		t.Fatalf("expected broken.dcm and nan.dcm failures, got %+v", report.Failures)
	}
	if !errors.Is(report.Failures[0].Err, services.ErrMetadata) {
		t.Fatalf("expected metadata marker, got %v", report.Failures[0].Err)
	}
	if !errors.Is(report.Failures[1].Err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", report.Failures[1].Err)
	}

	if len(report.Subjects) != 2 || report.Subjects[0].Name != "P001" || report.Subjects[1].Name != "P002" {
		t.Fatalf("unexpected subjects %+v", report.Subjects)
	}
	p1 := report.Subjects[0]
	if p1.Copied != 2 || p1.Skipped != 1 || p1.Failed != 1 {
		t.Fatalf("unexpected P001 counts %+v", p1)
	}
	if got := p1.BucketNames(); len(got) != 2 || got[0] != "Liver_Scan_1mm" || got[1] != "Liver_Scan_5mm" {
		t.Fatalf("unexpected buckets %v", got)
	}

	if prog.started != 1 || prog.total != 2 || prog.advanced != 2 || prog.finished != 1 {
		t.Fatalf("unexpected progress %+v", prog)
	}
	if _, err := os.Stat(filepath.Join(output, runlock.FileName)); !os.IsNotExist(err) {
		t.Fatalf("expected lock released, stat err=%v", err)
	}
}

func TestOrganizeAllLiverScanEndToEnd(t *testing.T) {
	base := t.TempDir()
	input := filepath.Join(base, "input")
	output := filepath.Join(base, "organized")
	testsupport.WriteDICOM(t, filepath.Join(input, "P001", "IM0001.dcm"), testsupport.Slice{SeriesDescription: "Liver Scan", SliceThickness: "1.25", InstanceNumber: 1})
	testsupport.WriteDICOM(t, filepath.Join(input, "P001", "IM0002.dcm"), testsupport.Slice{SeriesDescription: "Liver Scan", SliceThickness: "1.9", InstanceNumber: 2})
	testsupport.WriteDICOM(t, filepath.Join(input, "P001", "IM0003.dcm"), testsupport.Slice{SeriesDescription: "Liver Scan", SliceThickness: "0", InstanceNumber: 3})

	old := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	src := filepath.Join(input, "P001", "IM0001.dcm")
	if err := os.Chtimes(src, old, old); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}

	org := New(Options{InputDir: input, OutputDir: output, Reader: dicommeta.NewReader("Unknown")})
	report, err := org.OrganizeAll(context.Background())
	if err != nil {
		t.Fatalf("OrganizeAll: %v", err)
	}
	if report.Copied != 2 || report.Skipped != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	bucket := filepath.Join(output, "P001", "Liver_Scan_1mm")
	entries, err := os.ReadDir(bucket)
	if err != nil {
		t.Fatalf("read bucket: %v", err)
	}
	if len(entries) != 2 || entries[0].Name() != "IM0001.dcm" || entries[1].Name() != "IM0002.dcm" {
		t.Fatalf("unexpected bucket contents %v", entries)
	}
	if found := findFile(t, output, "IM0003.dcm"); found != "" {
		t.Fatalf("zero-thickness slice copied to %s", found)
	}

	copied := filepath.Join(bucket, "IM0001.dcm")
	after, err := os.ReadFile(copied)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(before) {
		t.Fatal("copied bytes differ from source")
	}
	info, err := os.Stat(copied)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(old) {
		t.Fatalf("expected mtime %v preserved, got %v", old, info.ModTime())
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source must remain in place: %v", err)
	}

	// A second run produces the same tree.
	again, err := org.OrganizeAll(context.Background())
	if err != nil {
		t.Fatalf("second OrganizeAll: %v", err)
	}
	if again.Copied != report.Copied || again.Skipped != report.Skipped {
		t.Fatalf("second run differs: %+v vs %+v", again, report)
	}
}

func TestOrganizeAllMissingInput(t *testing.T) {
	org := New(Options{InputDir: filepath.Join(t.TempDir(), "missing")})
	_, err := org.OrganizeAll(context.Background())
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestOrganizeAllInputIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.dcm")
	testsupport.WriteFile(t, path, 4)
	_, err := New(Options{InputDir: path}).OrganizeAll(context.Background())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOrganizeAllStopsOnCancel(t *testing.T) {
	input := filepath.Join(t.TempDir(), "in")
	testsupport.WriteFile(t, filepath.Join(input, "P001", "a.dcm"), 4)
	reader := &fakeReader{infos: map[string]dicommeta.SliceInfo{"a.dcm": {Label: "A", Thickness: 1, HasThickness: true}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := New(Options{InputDir: input, Reader: reader}).OrganizeAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Total != 0 || len(reader.reads) != 0 {
		t.Fatalf("expected no work after cancel, got %+v", report)
	}
}

func TestOrganizeAllRefusesLockedOutput(t *testing.T) {
	base := t.TempDir()
	input := filepath.Join(base, "in")
	output := filepath.Join(base, "out")
	testsupport.WriteFile(t, filepath.Join(input, "P001", "a.dcm"), 4)

	lock, err := runlock.Acquire(output)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	_, err = New(Options{InputDir: input, OutputDir: output, Reader: &fakeReader{}}).OrganizeAll(context.Background())
	if !errors.Is(err, runlock.ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}
}

func TestOrganizeAllSkipsNestedOutputRoot(t *testing.T) {
	input := filepath.Join(t.TempDir(), "in")
	output := filepath.Join(input, "organized")
	testsupport.WriteFile(t, filepath.Join(input, "P001", "a.dcm"), 4)
	reader := &fakeReader{infos: map[string]dicommeta.SliceInfo{"a.dcm": {Label: "A", Thickness: 2, HasThickness: true}}}

	report, err := New(Options{InputDir: input, OutputDir: output, Reader: reader}).OrganizeAll(context.Background())
	if err != nil {
		t.Fatalf("OrganizeAll: %v", err)
	}
	if len(report.Subjects) != 1 || report.Subjects[0].Name != "P001" {
		t.Fatalf("output root treated as subject: %+v", report.Subjects)
	}
}

func TestOrganizeAllEmptySubjectGetsOutputDir(t *testing.T) {
	input := filepath.Join(t.TempDir(), "in")
	if err := os.MkdirAll(filepath.Join(input, "P009"), 0o755); err != nil {
		t.Fatal(err)
	}
	report, err := New(Options{InputDir: input, Reader: &fakeReader{}}).OrganizeAll(context.Background())
	if err != nil {
		t.Fatalf("OrganizeAll: %v", err)
	}
	if report.Total != 0 || len(report.Subjects) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if info, err := os.Stat(filepath.Join(input+"_output", "P009")); err != nil || !info.IsDir() {
		t.Fatalf("expected subject output dir: %v", err)
	}
}

func TestOrganizeAllFollowsSymlinkedSubject(t *testing.T) {
	base := t.TempDir()
	input := filepath.Join(base, "scans")
	elsewhere := filepath.Join(base, "archive", "P009")
	testsupport.WriteFile(t, filepath.Join(elsewhere, "a.dcm"), 16)
	testsupport.WriteFile(t, filepath.Join(elsewhere, "nested", "b.dcm"), 16)
	testsupport.Symlink(t, elsewhere, filepath.Join(input, "P009"))

	reader := &fakeReader{infos: map[string]dicommeta.SliceInfo{
		"a.dcm": {Label: "Chest", Thickness: 2, HasThickness: true},
		"b.dcm": {Label: "Chest", Thickness: 2, HasThickness: true},
	}}
	report, err := New(Options{InputDir: input, Reader: reader}).OrganizeAll(context.Background())
	if err != nil {
		t.Fatalf("OrganizeAll: %v", err)
	}
	if report.Total != 2 || report.Copied != 2 {
		t.Fatalf("expected both linked slices copied, got %s", report.Summary())
	}
	for _, name := range []string{"a.dcm", "b.dcm"} {
		if _, err := os.Stat(filepath.Join(input+"_output", "P009", "Chest_2mm", name)); err != nil {
			t.Fatalf("expected %s in bucket: %v", name, err)
		}
	}
}

func TestOrganizeAllKeepsSameNamedSlices(t *testing.T) {
	input := filepath.Join(t.TempDir(), "scans")
	first := filepath.Join(input, "P001", "s1", "IM1.dcm")
	second := filepath.Join(input, "P001", "s2", "IM1.dcm")
	if err := os.MkdirAll(filepath.Dir(first), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(second), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(first, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}
	reader := &fakeReader{infos: map[string]dicommeta.SliceInfo{
		"IM1.dcm": {Label: "Liver Scan", Thickness: 1.5, HasThickness: true},
	}}

	report, err := New(Options{InputDir: input, Reader: reader}).OrganizeAll(context.Background())
	if err != nil {
		t.Fatalf("OrganizeAll: %v", err)
	}
	if report.Copied != 2 || report.Subjects[0].Buckets["Liver_Scan_1mm"] != 2 {
		t.Fatalf("unexpected report %+v", report.Subjects[0])
	}

	bucket := filepath.Join(input+"_output", "P001", "Liver_Scan_1mm")
	entries, err := os.ReadDir(bucket)
	if err != nil {
		t.Fatalf("read bucket: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 files on disk, got %d", len(entries))
	}
	for name, want := range map[string]string{"IM1.dcm": "first", "IM1_2.dcm": "second"} {
		data, err := os.ReadFile(filepath.Join(bucket, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(data) != want {
			t.Fatalf("%s = %q, want %q", name, data, want)
		}
	}
}

func TestFreeNameSkipsClaimedSuffixes(t *testing.T) {
	claimed := map[string]string{
		"/b/IM1.dcm":   "x",
		"/b/IM1_2.dcm": "y",
	}
	if got := freeName("/b/IM1.dcm", claimed); got != "/b/IM1_3.dcm" {
		t.Fatalf("freeName = %q", got)
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeCopied.String() != "copied" || OutcomeSkipped.String() != "skipped" || OutcomeFailed.String() != "failed" {
		t.Fatal("unexpected outcome labels")
	}
}

func findFile(t *testing.T, root, name string) string {
	t.Helper()
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == name {
			found = path
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return found
}
