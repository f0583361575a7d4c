//go:build windows

package disk

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// Get returns the usage of the volume holding path.
func Get(path string) (Usage, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return Usage{}, errors.Wrapf(err, "invalid path %s", path)
	}

	var u Usage
	if err := windows.GetDiskFreeSpaceEx(p, &u.Usable, &u.Total, &u.Free); err != nil {
		return Usage{}, errors.Wrapf(err, "error reading volume stats for %s", path)
	}
	return u, nil
}
