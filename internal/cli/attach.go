package cli

import (
	"github.com/calvinalkan/bigmat/internal/fs"
	"github.com/calvinalkan/bigmat/pkg/bigmat"
)

// readDescriptor loads a descriptor file. The descriptor's own namespace
// directory wins; the config only fills the gap for descriptors that
// never recorded one.
func readDescriptor(cfg Config, path string) (bigmat.Descriptor, error) {
	d, err := bigmat.LoadDescriptor(fs.NewReal(), path)
	if err != nil {
		return bigmat.Descriptor{}, err
	}

	if d.Dir == "" {
		d.Dir = cfg.IPCDir
	}

	return d, nil
}

// attach loads the descriptor at path and connects to the matrix.
func attach(cfg Config, path string) (bigmat.Matrix, bigmat.Descriptor, error) {
	d, err := readDescriptor(cfg, path)
	if err != nil {
		return nil, bigmat.Descriptor{}, err
	}

	m, err := bigmat.Attach(d)
	if err != nil {
		return nil, bigmat.Descriptor{}, err
	}

	return m, d, nil
}

// flushAndSaveNames persists what an import changed beyond the raw
// elements: dirty pages go to the backing files and any row/column names
// picked up from the input are written back into the descriptor.
func flushAndSaveNames(descPath string, m bigmat.Matrix) error {
	var d bigmat.Descriptor

	switch mat := m.(type) {
	case *bigmat.FileBacked:
		if err := mat.Flush(); err != nil {
			return err
		}

		d = mat.Describe()
	case *bigmat.SharedMemory:
		d = mat.Describe()
	default:
		return nil
	}

	return bigmat.SaveDescriptor(fs.NewReal(), descPath, d)
}
