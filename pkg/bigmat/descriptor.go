package bigmat

import (
	"encoding/json"
	"fmt"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/bigmat/internal/fs"
)

const descriptorPerm = 0o644

// Matrix kinds a [Descriptor] can name.
const (
	KindShared = "shm"
	KindFile   = "file"
)

// Descriptor is the serializable handle to a shared matrix: everything a
// separate process needs to attach. The backing store is not
// self-describing, so shape and layout travel here.
//
// Descriptor files are JWCC (JSON with comments and trailing commas),
// standardized before decoding, so hand-edited files stay valid.
type Descriptor struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Rows       int    `json:"rows"`
	Cols       int    `json:"cols"`
	Type       string `json:"type"`
	Separated  bool   `json:"separated,omitempty"`
	ExtraBytes int    `json:"extra_bytes,omitempty"`

	// File-backed matrices only.
	FileName string `json:"file_name,omitempty"`
	FilePath string `json:"file_path,omitempty"`
	Preserve bool   `json:"preserve,omitempty"`

	RowNames []string `json:"row_names,omitempty"`
	ColNames []string `json:"col_names,omitempty"`

	// Dir is the IPC namespace directory the matrix was created in.
	// Empty means the platform default.
	Dir string `json:"dir,omitempty"`
}

// Describe returns the descriptor another process can use to attach to
// this matrix.
func (m *SharedMemory) Describe() Descriptor {
	return Descriptor{
		ID:         m.uuid,
		Kind:       KindShared,
		Rows:       m.rows,
		Cols:       m.cols,
		Type:       m.etype.String(),
		Separated:  m.separated,
		ExtraBytes: m.extraBytes,
		RowNames:   m.rowNames,
		ColNames:   m.colNames,
		Dir:        m.ns.Dir(),
	}
}

// Describe returns the descriptor another process can use to attach to
// this matrix.
func (m *FileBacked) Describe() Descriptor {
	return Descriptor{
		ID:         m.uuid,
		Kind:       KindFile,
		Rows:       m.rows,
		Cols:       m.cols,
		Type:       m.etype.String(),
		Separated:  m.separated,
		ExtraBytes: m.extraBytes,
		FileName:   m.fileName,
		FilePath:   m.filePath,
		Preserve:   m.preserve,
		RowNames:   m.rowNames,
		ColNames:   m.colNames,
		Dir:        m.ns.Dir(),
	}
}

// Attach connects to the matrix the descriptor names and increments its
// reference count.
func Attach(d Descriptor) (Matrix, error) {
	etype, err := ParseElementType(d.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDescriptor, err)
	}

	switch d.Kind {
	case KindShared:
		return ConnectSharedMemory(d.ID, SharedOptions{
			Rows:       d.Rows,
			Cols:       d.Cols,
			Type:       etype,
			Separated:  d.Separated,
			ExtraBytes: d.ExtraBytes,
			RowNames:   d.RowNames,
			ColNames:   d.ColNames,
			Dir:        d.Dir,
		})
	case KindFile:
		return ConnectFileBacked(d.ID, FileOptions{
			Rows:       d.Rows,
			Cols:       d.Cols,
			Type:       etype,
			Separated:  d.Separated,
			ExtraBytes: d.ExtraBytes,
			RowNames:   d.RowNames,
			ColNames:   d.ColNames,
			FileName:   d.FileName,
			FilePath:   d.FilePath,
			Preserve:   d.Preserve,
			Dir:        d.Dir,
		})
	}

	return nil, fmt.Errorf("%w: unknown kind %q", ErrDescriptor, d.Kind)
}

// SaveDescriptor writes the descriptor to path as indented JSON,
// atomically.
func SaveDescriptor(fsys fs.FS, path string, d Descriptor) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrDescriptor, err)
	}

	data = append(data, '\n')

	if err := fsys.WriteFileAtomic(path, data, descriptorPerm); err != nil {
		return fmt.Errorf("%w: write %q: %v", ErrDescriptor, path, err)
	}

	return nil
}

// LoadDescriptor reads a descriptor file, accepting comments and
// trailing commas.
func LoadDescriptor(fsys fs.FS, path string) (Descriptor, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: read %q: %v", ErrDescriptor, path, err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: parse %q: %v", ErrDescriptor, path, err)
	}

	var d Descriptor
	if err := json.Unmarshal(std, &d); err != nil {
		return Descriptor{}, fmt.Errorf("%w: parse %q: %v", ErrDescriptor, path, err)
	}

	if d.ID == "" || d.Kind == "" {
		return Descriptor{}, fmt.Errorf("%w: %q is missing id or kind", ErrDescriptor, path)
	}

	return d, nil
}
