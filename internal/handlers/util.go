package handlers

import "os"

// fileSize returns path's size, or 0 if it cannot be stat'd — Finalize
// re-checks the file and downgrades to 404 on any problem, so a wrong
// length here is never trusted past that point.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
