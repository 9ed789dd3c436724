package compiler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Loaded is a compiled schema together with the files it came from.
type Loaded struct {
	*Schema

	// Files lists the CUE files in load order.
	Files []string

	// Sources maps each file to its contents.
	Sources map[string][]byte
}

// Load compiles the CUE files at path. A directory is walked for every
// .cue file; a file is loaded on its own. All files unify into one value.
func Load(path string) (*Loaded, error) {
	files, err := FindCUEFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", path)
	}

	sources := make(map[string][]byte, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		sources[f] = data
	}

	// The loader wants named files in one directory; each directory
	// becomes an instance and the instances are unified.
	ctx := cuecontext.New()
	var v cue.Value
	for i, group := range byDir(files) {
		instances := load.Instances(group, &load.Config{Dir: filepath.Dir(group[0])})
		if len(instances) == 0 {
			return nil, fmt.Errorf("no CUE instances loaded from %s", path)
		}
		inst := instances[0]
		if inst.Err != nil {
			return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
		}
		iv := ctx.BuildInstance(inst)
		if i == 0 {
			v = iv
		} else {
			v = v.Unify(iv)
		}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	s, err := Compile(v)
	if err != nil {
		return nil, err
	}
	return &Loaded{Schema: s, Files: files, Sources: sources}, nil
}

// byDir groups sorted files by directory, keeping order.
func byDir(files []string) [][]string {
	var groups [][]string
	for _, f := range files {
		n := len(groups)
		if n > 0 && filepath.Dir(groups[n-1][0]) == filepath.Dir(f) {
			groups[n-1] = append(groups[n-1], f)
			continue
		}
		groups = append(groups, []string{f})
	}
	return groups
}

// FindCUEFiles returns the absolute paths of the .cue files at path,
// sorted.
func FindCUEFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("schema path: %w", err)
	}
	if !info.IsDir() {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		return []string{abs}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(p) == ".cue" {
			abs, err := filepath.Abs(p)
			if err != nil {
				return err
			}
			files = append(files, abs)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	sort.Strings(files)
	return files, nil
}
