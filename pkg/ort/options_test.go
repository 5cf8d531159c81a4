package ort

import (
	"path/filepath"
	"testing"
)

func TestReadFileOptionsMissingFileReturnsDefaults(t *testing.T) {
	fo, err := ReadFileOptions(filepath.Join(t.TempDir(), "merge.toml"))
	if err != nil {
		t.Fatalf("ReadFileOptions: %v", err)
	}
	want := DefaultFileOptions()
	if *fo != *want {
		t.Errorf("ReadFileOptions(missing) = %+v, want defaults %+v", fo, want)
	}
}

func TestWriteThenReadFileOptionsRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merge.toml")
	fo := &FileOptions{
		DetectRenames:    true,
		RenameLimit:      100,
		RenameScore:      75,
		RecursiveVariant: "theirs",
		Verbosity:        3,
		DiffAlgorithm:    "myers",
	}
	if err := WriteFileOptions(path, fo); err != nil {
		t.Fatalf("WriteFileOptions: %v", err)
	}

	got, err := ReadFileOptions(path)
	if err != nil {
		t.Fatalf("ReadFileOptions: %v", err)
	}
	if *got != *fo {
		t.Errorf("round-tripped FileOptions = %+v, want %+v", got, fo)
	}
}

func TestToOptionsParsesRecursiveVariant(t *testing.T) {
	tests := []struct {
		variant string
		want    RecursiveVariant
	}{
		{"", RecursiveVariantNormal},
		{"normal", RecursiveVariantNormal},
		{"ours", RecursiveVariantOurs},
		{"theirs", RecursiveVariantTheirs},
	}
	for _, tt := range tests {
		fo := DefaultFileOptions()
		fo.RecursiveVariant = tt.variant
		opt, err := fo.ToOptions("HEAD", "feature", nil, nil)
		if err != nil {
			t.Fatalf("ToOptions(%q): %v", tt.variant, err)
		}
		if opt.RecursiveVariant != tt.want {
			t.Errorf("ToOptions(%q).RecursiveVariant = %v, want %v", tt.variant, opt.RecursiveVariant, tt.want)
		}
	}
}

func TestToOptionsRejectsUnknownRecursiveVariant(t *testing.T) {
	fo := DefaultFileOptions()
	fo.RecursiveVariant = "sideways"
	if _, err := fo.ToOptions("HEAD", "feature", nil, nil); err == nil {
		t.Error("expected an error for an unknown recursive_variant")
	}
}

func TestOptionsValidateDefaults(t *testing.T) {
	opt := &Options{}
	if err := opt.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if opt.Branch1Label != "HEAD" || opt.Branch2Label != "merge" {
		t.Errorf("expected default labels, got %q/%q", opt.Branch1Label, opt.Branch2Label)
	}
	if opt.DiffAlgorithm != "histogram" {
		t.Errorf("expected default diff algorithm histogram, got %q", opt.DiffAlgorithm)
	}
	if _, ok := opt.RenameDetector.(NoRenameDetector); !ok {
		t.Error("expected RenameDetector to default to NoRenameDetector")
	}
}

func TestOptionsValidateRejectsOutOfRangeFields(t *testing.T) {
	tests := []struct {
		name string
		opt  *Options
	}{
		{"rename limit too negative", &Options{RenameLimit: -2}},
		{"rename score too high", &Options{RenameScore: MaxRenameScore + 1}},
		{"rename score negative", &Options{RenameScore: -1}},
		{"verbosity too high", &Options{Verbosity: 6}},
		{"verbosity negative", &Options{Verbosity: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opt.Validate(); err == nil {
				t.Error("expected Validate to reject this option set")
			}
		})
	}
}
