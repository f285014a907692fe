package bigmat

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileBacked_CreateWritesBackingFile(t *testing.T) {
	t.Parallel()

	files := t.TempDir()

	m, err := CreateFileBacked(FileOptions{
		Rows: 20, Cols: 3, Type: Int,
		FileName: "data.bin", FilePath: files, Dir: t.TempDir(),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = m.Destroy() })

	require.Equal(t, "data.bin", m.FileName())
	require.Equal(t, "data.bin"+m.UUID(), m.SharedName())

	info, err := os.Stat(filepath.Join(files, "data.bin"))
	require.NoError(t, err)
	require.Equal(t, int64(20*3*4), info.Size())
}

func TestFileBacked_SeparatedOneFilePerColumn(t *testing.T) {
	t.Parallel()

	files := t.TempDir()

	m, err := CreateFileBacked(FileOptions{
		Rows: 8, Cols: 3, Type: Double, Separated: true,
		FileName: "cols.bin", FilePath: files, Dir: t.TempDir(),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = m.Destroy() })

	for i := 0; i < 3; i++ {
		info, err := os.Stat(filepath.Join(files, "cols.bin_column_"+strconv.Itoa(i)))
		require.NoError(t, err)
		require.Equal(t, int64(8*8), info.Size())
	}
}

func TestFileBacked_DataSurvivesDetachWithPreserve(t *testing.T) {
	t.Parallel()

	files := t.TempDir()
	ipcDir := t.TempDir()
	fill := 7.5

	creator, err := CreateFileBacked(FileOptions{
		Rows: 10, Cols: 2, Type: Double, Fill: &fill, Preserve: true,
		FileName: "kept.bin", FilePath: files, Dir: ipcDir,
	})
	require.NoError(t, err)

	uuid := creator.UUID()
	creator.Set(3, 1, -2)

	require.NoError(t, creator.Flush())
	require.NoError(t, creator.Destroy())

	// Backing file preserved on disk.
	_, err = os.Stat(filepath.Join(files, "kept.bin"))
	require.NoError(t, err)

	// A later attach under the same identifier sees the old data.
	attacher, err := ConnectFileBacked(uuid, FileOptions{
		Rows: 10, Cols: 2, Type: Double, Preserve: true,
		FileName: "kept.bin", FilePath: files, Dir: ipcDir,
	})
	require.NoError(t, err)

	require.Equal(t, fill, attacher.Get(0, 0))
	require.Equal(t, float64(-2), attacher.Get(3, 1))
	require.NoError(t, attacher.Destroy())
}

func TestFileBacked_LastDestroyDeletesFilesWithoutPreserve(t *testing.T) {
	t.Parallel()

	files := t.TempDir()
	ipcDir := t.TempDir()

	creator, err := CreateFileBacked(FileOptions{
		Rows: 5, Cols: 3, Type: Char, Separated: true,
		FileName: "tmp.bin", FilePath: files, Dir: ipcDir,
	})
	require.NoError(t, err)

	attacher, err := ConnectFileBacked(creator.UUID(), FileOptions{
		Rows: 5, Cols: 3, Type: Char, Separated: true,
		FileName: "tmp.bin", FilePath: files, Dir: ipcDir,
	})
	require.NoError(t, err)

	require.NoError(t, creator.Destroy())

	// Still one live handle: files remain.
	for i := 0; i < 3; i++ {
		_, err := os.Stat(filepath.Join(files, "tmp.bin_column_"+strconv.Itoa(i)))
		require.NoError(t, err)
	}

	require.NoError(t, attacher.Destroy())

	for i := 0; i < 3; i++ {
		_, err := os.Stat(filepath.Join(files, "tmp.bin_column_"+strconv.Itoa(i)))
		require.ErrorIs(t, err, os.ErrNotExist)
	}
}

func TestFileBacked_TruncatedFileClampsToWholeElements(t *testing.T) {
	t.Parallel()

	files := t.TempDir()
	ipcDir := t.TempDir()

	creator, err := CreateFileBacked(FileOptions{
		Rows: 2, Cols: 1, Type: Double, Separated: true, Preserve: true,
		FileName: "short.bin", FilePath: files, Dir: ipcDir,
	})
	require.NoError(t, err)

	uuid := creator.UUID()
	creator.Set(0, 0, 1.5)
	require.NoError(t, creator.Flush())
	require.NoError(t, creator.Destroy())

	// Truncate the backing file mid-element: 12 bytes is one and a half
	// float64 values.
	require.NoError(t, os.Truncate(filepath.Join(files, "short.bin_column_0"), 12))

	attacher, err := ConnectFileBacked(uuid, FileOptions{
		Rows: 2, Cols: 1, Type: Double, Separated: true, Preserve: true,
		FileName: "short.bin", FilePath: files, Dir: ipcDir,
	})
	require.NoError(t, err)

	// The column view holds whole elements only, so the torn second
	// element is unreachable rather than half-mapped.
	require.Len(t, attacher.columnBytes(0), 8)

	col, err := Column[float64](attacher, 0)
	require.NoError(t, err)
	require.Len(t, col, 1)

	require.Equal(t, 1.5, attacher.Get(0, 0))
	require.NoError(t, attacher.Destroy())
}

func TestFileBacked_TruncatedContiguousClampsToWholeElements(t *testing.T) {
	t.Parallel()

	files := t.TempDir()
	ipcDir := t.TempDir()

	creator, err := CreateFileBacked(FileOptions{
		Rows: 2, Cols: 2, Type: Int, Preserve: true,
		FileName: "wide.bin", FilePath: files, Dir: ipcDir,
	})
	require.NoError(t, err)

	uuid := creator.UUID()
	require.NoError(t, creator.Destroy())

	// 10 bytes leaves column 0 intact and cuts column 1 mid-element.
	require.NoError(t, os.Truncate(filepath.Join(files, "wide.bin"), 10))

	attacher, err := ConnectFileBacked(uuid, FileOptions{
		Rows: 2, Cols: 2, Type: Int, Preserve: true,
		FileName: "wide.bin", FilePath: files, Dir: ipcDir,
	})
	require.NoError(t, err)

	require.Len(t, attacher.columnBytes(0), 8)
	require.Empty(t, attacher.columnBytes(1))

	require.NoError(t, attacher.Destroy())
}

func TestFileBacked_FailedCreateRollsBackMappings(t *testing.T) {
	t.Parallel()

	files := t.TempDir()

	// Occupying the second column's path forces creation to fail after
	// the first column was already created and mapped.
	require.NoError(t, os.Mkdir(filepath.Join(files, "part.bin_column_1"), 0o755))

	_, err := CreateFileBacked(FileOptions{
		Rows: 4, Cols: 2, Type: Double, Separated: true,
		FileName: "part.bin", FilePath: files, Dir: t.TempDir(),
	})
	require.Error(t, err)

	// The first column's file was removed again.
	_, err = os.Stat(filepath.Join(files, "part.bin_column_0"))
	require.ErrorIs(t, err, os.ErrNotExist)

	// And its mapping was released: nothing in this process's address
	// space still references the file.
	maps, err := os.ReadFile("/proc/self/maps")
	require.NoError(t, err)
	require.NotContains(t, string(maps), "part.bin_column_0")
}

func TestFileBacked_ConnectMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ConnectFileBacked("deadbeef", FileOptions{
		Rows: 5, Cols: 1, Type: Double,
		FileName: "gone.bin", FilePath: t.TempDir(), Dir: t.TempDir(),
	})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileBacked_RequiresFileName(t *testing.T) {
	t.Parallel()

	_, err := CreateFileBacked(FileOptions{
		Rows: 5, Cols: 1, Type: Double, FilePath: t.TempDir(), Dir: t.TempDir(),
	})
	require.ErrorIs(t, err, ErrShape)
}

func TestFileBacked_FlushAfterDestroy(t *testing.T) {
	t.Parallel()

	m, err := CreateFileBacked(FileOptions{
		Rows: 5, Cols: 1, Type: Double,
		FileName: "f.bin", FilePath: t.TempDir(), Dir: t.TempDir(),
	})
	require.NoError(t, err)

	require.NoError(t, m.Destroy())
	require.ErrorIs(t, m.Flush(), ErrDestroyed)
}
