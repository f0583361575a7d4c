// Package disk reports the space available to the capture directory.
package disk

import (
	"fmt"
)

// Usage of the file system holding a path, in bytes. Free counts all free
// blocks, Usable only those available to this process.
type Usage struct {
	Total  uint64 `json:"totalSpace"`
	Free   uint64 `json:"freeSpace"`
	Usable uint64 `json:"usableSpace"`
}

// Report is Usage with human readable sizes, as served on /status.
type Report struct {
	Usage
	TotalFormatted  string `json:"totalSpaceFormatted"`
	FreeFormatted   string `json:"freeSpaceFormatted"`
	UsableFormatted string `json:"usableSpaceFormatted"`
}

func (u Usage) Report() Report {
	return Report{
		Usage:           u,
		TotalFormatted:  FormatSize(u.Total),
		FreeFormatted:   FormatSize(u.Free),
		UsableFormatted: FormatSize(u.Usable),
	}
}

// FormatSize formats bytes with binary units, e.g. "1.5 KB".
func FormatSize(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
