// Package example loads few-shot example pairs from disk.
//
// An examples directory holds one subdirectory per example. Each subdirectory
// contains exactly one source file named source.* and one test file named
// tests.*; the subdirectory name becomes the example name and the source
// file's extension is carried into the file name shown to the model.
package example

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"testsmith.app/testsmith/internal/model"
)

const (
	sourcePrefix = "source."
	testsPrefix  = "tests."
)

// Load reads every example under dir, sorted by name so the few-shot order
// is stable across runs. A missing directory is not an error: callers that
// never configured examples get an empty slice.
func Load(dir string) ([]model.Example, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read examples dir %s: %w", dir, err)
	}

	var examples []model.Example
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		ex, err := loadOne(filepath.Join(dir, entry.Name()), entry.Name())
		if err != nil {
			return nil, err
		}
		examples = append(examples, ex)
	}

	sort.Slice(examples, func(i, j int) bool { return examples[i].Name < examples[j].Name })

	return examples, nil
}

func loadOne(dir, name string) (model.Example, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return model.Example{}, fmt.Errorf("read example %s: %w", name, err)
	}

	var sourceFile, testsFile string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch {
		case strings.HasPrefix(entry.Name(), sourcePrefix):
			if sourceFile != "" {
				return model.Example{}, fmt.Errorf("example %s: multiple source.* files (%s, %s)", name, sourceFile, entry.Name())
			}
			sourceFile = entry.Name()
		case strings.HasPrefix(entry.Name(), testsPrefix):
			if testsFile != "" {
				return model.Example{}, fmt.Errorf("example %s: multiple tests.* files (%s, %s)", name, testsFile, entry.Name())
			}
			testsFile = entry.Name()
		}
	}

	if sourceFile == "" || testsFile == "" {
		return model.Example{}, fmt.Errorf("example %s: needs one source.* and one tests.* file", name)
	}

	source, err := os.ReadFile(filepath.Join(dir, sourceFile))
	if err != nil {
		return model.Example{}, fmt.Errorf("read example %s source: %w", name, err)
	}

	tests, err := os.ReadFile(filepath.Join(dir, testsFile))
	if err != nil {
		return model.Example{}, fmt.Errorf("read example %s tests: %w", name, err)
	}

	// The model sees "<name>.<ext>" as the example's file name, e.g. an
	// example "ring_buffer" with source.go becomes "ring_buffer.go".
	ext := strings.TrimPrefix(sourceFile, sourcePrefix)
	file := name
	if ext != "" {
		file = name + "." + ext
	}

	return model.Example{
		Name:   name,
		File:   file,
		Source: string(source),
		Tests:  string(tests),
	}, nil
}
