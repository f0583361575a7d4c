//go:build !windows

package disk

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Get returns the usage of the file system holding path.
func Get(path string) (Usage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Usage{}, errors.Wrapf(err, "error reading file system stats for %s", path)
	}
	return Usage{
		Total:  stat.Blocks * uint64(stat.Bsize),
		Free:   stat.Bfree * uint64(stat.Bsize),
		Usable: stat.Bavail * uint64(stat.Bsize),
	}, nil
}
