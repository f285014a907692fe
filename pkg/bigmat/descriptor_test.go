package bigmat

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/bigmat/internal/fs"
)

func TestDescriptor_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	path := filepath.Join(t.TempDir(), "matrix.desc")

	want := Descriptor{
		ID:         "abc123",
		Kind:       KindFile,
		Rows:       100,
		Cols:       4,
		Type:       "double",
		Separated:  true,
		ExtraBytes: 32,
		FileName:   "data.bin",
		FilePath:   "/data",
		Preserve:   true,
		ColNames:   []string{"a", "b", "c", "d"},
	}

	require.NoError(t, SaveDescriptor(fsys, path, want))

	got, err := LoadDescriptor(fsys, path)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDescriptor_AcceptsCommentsAndTrailingCommas(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	path := filepath.Join(t.TempDir(), "matrix.desc")

	raw := `{
		// hand-written descriptor
		"id": "abc123",
		"kind": "shm",
		"rows": 10,
		"cols": 2,
		"type": "int",
	}`
	require.NoError(t, fsys.WriteFileAtomic(path, []byte(raw), 0o644))

	d, err := LoadDescriptor(fsys, path)
	require.NoError(t, err)
	require.Equal(t, "abc123", d.ID)
	require.Equal(t, KindShared, d.Kind)
	require.Equal(t, 10, d.Rows)
}

func TestLoadDescriptor_Invalid(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	dir := t.TempDir()

	// Missing file.
	_, err := LoadDescriptor(fsys, filepath.Join(dir, "missing.desc"))
	require.ErrorIs(t, err, ErrDescriptor)

	// Unparseable body.
	bad := filepath.Join(dir, "bad.desc")
	require.NoError(t, fsys.WriteFileAtomic(bad, []byte("not json"), 0o644))

	_, err = LoadDescriptor(fsys, bad)
	require.ErrorIs(t, err, ErrDescriptor)

	// Structurally valid but incomplete.
	empty := filepath.Join(dir, "empty.desc")
	require.NoError(t, fsys.WriteFileAtomic(empty, []byte("{}"), 0o644))

	_, err = LoadDescriptor(fsys, empty)
	require.ErrorIs(t, err, ErrDescriptor)
}

func TestAttach_RejectsUnknownKindAndType(t *testing.T) {
	t.Parallel()

	_, err := Attach(Descriptor{ID: "x", Kind: "tape", Type: "double"})
	require.ErrorIs(t, err, ErrDescriptor)

	_, err = Attach(Descriptor{ID: "x", Kind: KindShared, Type: "float"})
	require.ErrorIs(t, err, ErrDescriptor)
}

func TestAttach_SharedMemoryRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fill := 3.14

	creator, err := CreateSharedMemory(SharedOptions{
		Rows: 100, Cols: 4, Type: Double, Fill: &fill, Dir: dir,
	})
	require.NoError(t, err)

	attached, err := Attach(creator.Describe())
	require.NoError(t, err)

	require.Equal(t, 100, attached.Rows())
	require.Equal(t, 4, attached.Cols())
	require.Equal(t, Double, attached.ElemType())
	require.Equal(t, fill, attached.Get(99, 3))

	require.NoError(t, attached.Destroy())
	require.NoError(t, creator.Destroy())
}

func TestAttach_FileBackedRoundTrip(t *testing.T) {
	t.Parallel()

	files := t.TempDir()
	ipcDir := t.TempDir()

	creator, err := CreateFileBacked(FileOptions{
		Rows: 10, Cols: 2, Type: Short,
		FileName: "m.bin", FilePath: files, Dir: ipcDir,
	})
	require.NoError(t, err)

	creator.Set(4, 1, 321)

	attached, err := Attach(creator.Describe())
	require.NoError(t, err)

	require.Equal(t, float64(321), attached.Get(4, 1))

	fb, ok := attached.(*FileBacked)
	require.True(t, ok)
	require.Equal(t, "m.bin", fb.FileName())

	require.NoError(t, attached.Destroy())
	require.NoError(t, creator.Destroy())
}
