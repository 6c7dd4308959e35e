package preflight

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"michatta/internal/legacy"
)

// MinFreeBytes is the free-space floor below which the data dir check fails.
const MinFreeBytes = 64 << 20

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace reports the space available to unprivileged writers on the
// filesystem holding path.
func CheckFreeSpace(name, path string) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	detail := fmt.Sprintf("%s free", humanize.IBytes(free))
	if free < MinFreeBytes {
		return Result{Name: name, Detail: detail + fmt.Sprintf(" (below %s)", humanize.IBytes(MinFreeBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// Database is the part of the viewed store the database check needs.
type Database interface {
	Open(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
	Count(ctx context.Context) int
}

// CheckDatabase opens the store and reports its schema version and size.
func CheckDatabase(ctx context.Context, db Database) Result {
	const name = "Viewed database"
	if err := db.Open(ctx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("open failed: %v", err)}
	}
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("schema check failed: %v", err)}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("schema v%d, %s viewed items", version, humanize.Comma(int64(db.Count(ctx)))),
	}
}

// CheckLegacy verifies the legacy storage file is readable and reports
// whether migration has completed.
func CheckLegacy(mirror *legacy.Mirror) Result {
	const name = "Legacy storage"
	if !mirror.Enabled() {
		return Result{Name: name, Passed: true, Detail: "not configured"}
	}
	snap, err := mirror.Load()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", mirror.Path(), err)}
	}
	state := "migration pending"
	if snap.MigrationMarker == legacy.MarkerCompleted {
		state = "migration completed"
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (%s, %s mirrored items)", mirror.Path(), state, humanize.Comma(int64(len(snap.Items)))),
	}
}
