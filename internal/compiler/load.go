package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/phasedefer/internal/ir"
)

// Load failures that callers map to their own error codes.
var (
	ErrDirNotFound = errors.New("plan directory not found")
	ErrNoCUEFiles  = errors.New("no CUE files found")
	ErrLoadFailed  = errors.New("CUE load failed")
	ErrBuildFailed = errors.New("CUE build failed")
)

// Package is a CUE package loaded from a plan directory.
type Package struct {
	Value cue.Value
	Files []string
}

// LoadDir loads the CUE package rooted at dir.
func LoadDir(dir string) (*Package, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDirNotFound, dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", ErrDirNotFound, dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoCUEFiles, dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: no instances in %s", ErrLoadFailed, dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	// Validate also reports conflicts nested below the root.
	if err := value.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, formatCUEError(err))
	}
	return &Package{Value: value, Files: files}, nil
}

// LoadPlans loads dir and compiles every plan it declares.
func LoadPlans(dir string) ([]ir.Plan, error) {
	pkg, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return CompilePlans(pkg.Value)
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
