package primitives

import (
	"hash/fnv"
	"os"
	"path/filepath"
)

// Filepath is the location of a table file on disk.
type Filepath string

// Hash maps the path to a stable FileID (FNV-1a over the path bytes).
func (f Filepath) Hash() FileID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(f))
	return FileID(h.Sum64())
}

func (f Filepath) String() string { return string(f) }
func (f Filepath) IsEmpty() bool  { return f == "" }
func (f Filepath) Dir() string    { return filepath.Dir(string(f)) }
func (f Filepath) Base() string   { return filepath.Base(string(f)) }

// Join appends path elements.
func (f Filepath) Join(elem ...string) Filepath {
	return Filepath(filepath.Join(append([]string{string(f)}, elem...)...))
}

func (f Filepath) Exists() bool {
	_, err := os.Stat(string(f))
	return err == nil
}

// Remove deletes the file; a missing file is not an error.
func (f Filepath) Remove() error {
	if err := os.Remove(string(f)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MkdirAll creates the parent directory chain.
func (f Filepath) MkdirAll(perm os.FileMode) error {
	return os.MkdirAll(f.Dir(), perm)
}
