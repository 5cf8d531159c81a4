package ort

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileOptions is the on-disk, user-tunable subset of Options: the knobs
// that make sense as a repository setting rather than a per-call
// parameter (Hook and RenameDetector are always supplied by the caller in
// code, never from a config file).
type FileOptions struct {
	DetectRenames    bool   `toml:"detect_renames"`
	RenameLimit      int    `toml:"rename_limit"`
	RenameScore      int    `toml:"rename_score"`
	RecursiveVariant string `toml:"recursive_variant"`
	Verbosity        int    `toml:"verbosity"`
	DiffAlgorithm    string `toml:"diff_algorithm"`
}

// DefaultFileOptions returns the settings used when no config file exists.
func DefaultFileOptions() *FileOptions {
	return &FileOptions{
		DetectRenames:    false,
		RenameLimit:      -1,
		RenameScore:      50,
		RecursiveVariant: "normal",
		Verbosity:        1,
		DiffAlgorithm:    "histogram",
	}
}

// ReadFileOptions reads path (typically ".got/merge.toml"). Missing config
// returns DefaultFileOptions, the same "defaulted struct on missing file"
// shape got's own config.json reader uses.
func ReadFileOptions(path string) (*FileOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultFileOptions(), nil
		}
		return nil, fmt.Errorf("read merge options %q: %w", path, err)
	}

	fo := DefaultFileOptions()
	if _, err := toml.Decode(string(data), fo); err != nil {
		return nil, fmt.Errorf("read merge options %q: %w", path, err)
	}
	return fo, nil
}

// WriteFileOptions atomically writes fo to path.
func WriteFileOptions(path string, fo *FileOptions) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(fo); err != nil {
		return fmt.Errorf("write merge options %q: marshal: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write merge options %q: %w", path, err)
	}
	return nil
}

// ToOptions builds an engine Options from the file-backed settings plus
// the per-call values only the caller can supply.
func (fo *FileOptions) ToOptions(branch1Label, branch2Label string, hook ContentMergeHook, detector RenameDetector) (*Options, error) {
	variant, err := parseRecursiveVariant(fo.RecursiveVariant)
	if err != nil {
		return nil, err
	}
	return &Options{
		Branch1Label:     branch1Label,
		Branch2Label:     branch2Label,
		DetectRenames:    fo.DetectRenames,
		RenameLimit:      fo.RenameLimit,
		RenameScore:      fo.RenameScore,
		RecursiveVariant: variant,
		Verbosity:        fo.Verbosity,
		DiffAlgorithm:    fo.DiffAlgorithm,
		Hook:             hook,
		RenameDetector:   detector,
	}, nil
}

func parseRecursiveVariant(s string) (RecursiveVariant, error) {
	switch s {
	case "", "normal":
		return RecursiveVariantNormal, nil
	case "ours":
		return RecursiveVariantOurs, nil
	case "theirs":
		return RecursiveVariantTheirs, nil
	default:
		return 0, fmt.Errorf("ort: options: unknown recursive_variant %q", s)
	}
}
