package totalseg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"dcmorg/internal/services"
)

func writeVolume(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Liver_Scan_1mm.nii.gz")
	if err := os.WriteFile(path, []byte("nii"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		req  Request
		want []string
	}{
		{
			name: "combined",
			req:  Request{Input: "in.nii.gz", Output: "out_mask.nii.gz", ROIs: []string{"liver", "spleen"}, MultiLabel: true},
			want: []string{"-i", "in.nii.gz", "-o", "out_mask.nii.gz", "--roi_subset", "liver", "spleen", "--ml"},
		},
		{
			name: "single target with device",
			cfg:  Config{Device: "gpu:1", Fast: true},
			req:  Request{Input: "in.nii.gz", Output: "dir", ROIs: []string{"pancreas"}},
			want: []string{"-i", "in.nii.gz", "-o", "dir", "--roi_subset", "pancreas", "--device", "gpu:1", "--fast"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NewService(tc.cfg).BuildArgs(tc.req)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("args = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSegmentCreatesOutputParent(t *testing.T) {
	volume := writeVolume(t)
	out := filepath.Join(t.TempDir(), "nested", "mask.nii.gz")

	svc := NewService(Config{})
	var called string
	svc.WithCommandRunner(func(_ context.Context, name string, _ ...string) error {
		called = name
		return nil
	})
	if err := svc.Segment(context.Background(), Request{Input: volume, Output: out, ROIs: []string{"liver"}, MultiLabel: true}); err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if called != DefaultBinary {
		t.Fatalf("unexpected binary %q", called)
	}
	if info, err := os.Stat(filepath.Dir(out)); err != nil || !info.IsDir() {
		t.Fatalf("expected parent dir created: %v", err)
	}
}

func TestSegmentErrors(t *testing.T) {
	volume := writeVolume(t)
	svc := NewService(Config{Binary: "ts"})
	svc.WithCommandRunner(func(context.Context, string, ...string) error { return errors.New("exit status 2") })

	if err := svc.Segment(context.Background(), Request{Input: volume, Output: t.TempDir()}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error without rois, got %v", err)
	}
	missing := filepath.Join(t.TempDir(), "none.nii.gz")
	if err := svc.Segment(context.Background(), Request{Input: missing, Output: t.TempDir(), ROIs: []string{"liver"}}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Segment(context.Background(), Request{Input: volume, Output: t.TempDir(), ROIs: []string{"liver"}}); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
