//go:build unix

package sysmap

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// reserve claims size bytes of contiguous address space with no access
// permissions and no backing file. The kernel picks the address; nothing
// else can be allocated inside the region until parts of it are replaced
// with fixed mappings.
func reserve(size uint64) (unsafe.Pointer, error) {
	return unix.MmapPtr(-1, 0, nil, uintptr(size),
		unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

// mapFixed replaces the reserved sub-region at addr with a read-only
// private mapping of f starting at offset. addr and offset must be
// page-aligned.
func mapFixed(addr unsafe.Pointer, length uint64, f *os.File, offset int64) error {
	_, err := unix.MmapPtr(int(f.Fd()), offset, addr, uintptr(length),
		unix.PROT_READ, unix.MAP_PRIVATE|unix.MAP_FIXED)
	return err
}

// mapPrivate creates a read-only private mapping of f at a kernel-chosen
// address. offset must be page-aligned.
func mapPrivate(f *os.File, offset int64, length uint64) (unsafe.Pointer, error) {
	return unix.MmapPtr(int(f.Fd()), offset, nil, uintptr(length),
		unix.PROT_READ, unix.MAP_PRIVATE)
}

func munmapRange(addr unsafe.Pointer, length uint64) error {
	return unix.MunmapPtr(addr, uintptr(length))
}
