package organizer

import (
	"errors"
	"math"
	"testing"

	"dcmorg/internal/services"
)

func TestBucketName(t *testing.T) {
	tests := []struct {
		name      string
		label     string
		thickness float64
		has       bool
		want      string
		wantOK    bool
	}{
		{name: "truncates fraction", label: "Liver Scan", thickness: 1.25, has: true, want: "Liver_Scan_1mm", wantOK: true},
		{name: "does not round up", label: "Liver Scan", thickness: 1.9, has: true, want: "Liver_Scan_1mm", wantOK: true},
		{name: "whole value", label: "AX 5.0 / CE", thickness: 5, has: true, want: "AX_5.0___CE_5mm", wantOK: true},
		{name: "below one", label: "Thin", thickness: 0.5, has: true, want: "Thin_0mm", wantOK: true},
		{name: "negative toward zero", label: "Odd", thickness: -1.5, has: true, want: "Odd_-1mm", wantOK: true},
		{name: "small negative", label: "Odd", thickness: -0.5, has: true, want: "Odd_0mm", wantOK: true},
		{name: "empty label", label: "", thickness: 3, has: true, want: "_3mm", wantOK: true},
		{name: "zero skipped", label: "Scout", thickness: 0, has: true},
		{name: "absent skipped", label: "Scout", thickness: 2.5, has: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := BucketName(tc.label, tc.thickness, tc.has)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("BucketName(%q, %v, %v) = %q, %v; want %q, %v", tc.label, tc.thickness, tc.has, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestBucketNameRejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, ok, err := BucketName("Series", v, true)
		if ok || !errors.Is(err, services.ErrValidation) {
			t.Fatalf("thickness %v: ok=%v err=%v, want validation error", v, ok, err)
		}
	}
}

func TestBucketNameIsDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		a, _, _ := BucketName("Chest  CT", 2.75, true)
		b, _, _ := BucketName("Chest  CT", 2.75, true)
		if a != b || a != "Chest_CT_2mm" {
			t.Fatalf("unstable bucket names %q / %q", a, b)
		}
	}
	// Labels that only differ in sanitized characters share a bucket.
	a, _, _ := BucketName("A/B", 1, true)
	b, _, _ := BucketName("A:B", 1, true)
	if a != b {
		t.Fatalf("expected %q == %q", a, b)
	}
}
