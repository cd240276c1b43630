//go:build linux

package dsv

import (
	"os"

	"golang.org/x/sys/unix"
)

// advise tells the kernel the file is read front to back so it can read
// ahead more aggressively. Failure only costs performance.
func advise(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
