package content

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Entry is one staged file.
type Entry struct {
	Path string // slash-separated, relative to the web root
	Size int64
}

// Manifest fingerprints a staged web root.
type Manifest struct {
	Root    string
	Entries []Entry
	Digest  string // hex SHA-256 over paths and contents
}

// Scan walks root and computes its manifest. Entries are sorted by path so
// the digest is independent of directory iteration order.
func Scan(root string) (*Manifest, error) {
	m := &Manifest{Root: root}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		m.Entries = append(m.Entries, Entry{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].Path < m.Entries[j].Path })

	h := sha256.New()
	for _, e := range m.Entries {
		_, _ = io.WriteString(h, e.Path)
		_, _ = h.Write([]byte{0})
		if err := hashFile(h, filepath.Join(root, filepath.FromSlash(e.Path))); err != nil {
			return nil, err
		}
		_, _ = h.Write([]byte{0})
	}
	m.Digest = hex.EncodeToString(h.Sum(nil))
	return m, nil
}

// Paths returns the staged relative paths.
func (m *Manifest) Paths() []string {
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Path
	}
	return out
}

// Unchanged reports whether root still has the digest recorded in m.
func (m *Manifest) Unchanged() bool {
	current, err := Scan(m.Root)
	if err != nil {
		return false
	}
	return current.Digest == m.Digest
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from walking the staging root
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = io.Copy(w, f)
	return err
}
