//go:build linux

package extract

import (
	"os"

	"golang.org/x/sys/unix"
)

// dropPageCache tells the kernel the source pages will not be read again.
func dropPageCache(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_DONTNEED)
}
