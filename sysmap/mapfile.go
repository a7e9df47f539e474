package sysmap

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unsafe"
)

// BlockMapPrefix marks a path as naming a block map descriptor instead
// of the file to map itself.
const BlockMapPrefix = "@"

// MapFile maps the file named by path into memory, read-only. A path
// starting with "@" names a block map descriptor; the logical file is
// then reconstructed from block ranges on the descriptor's block device.
// Any other path is mapped directly as a regular file.
//
// On failure nothing is left behind: every descriptor, device handle and
// mapping opened along the way is released before the error is returned.
func MapFile(path string) (*Mapping, error) {
	if strings.HasPrefix(path, BlockMapPrefix) {
		f, err := os.Open(strings.TrimPrefix(path, BlockMapPrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		defer f.Close()

		bm, err := parseBlockMap(f)
		if err != nil {
			return nil, err
		}
		return mapBlockFile(bm)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()
	return MapFd(f)
}

// MapFd maps the contents of f from its current offset through the end
// of the file as a single read-only private mapping. The offset must be
// a multiple of the page size. Empty content is an error, not a
// zero-length mapping. The mapping stays valid after f is closed.
func MapFd(f *os.File) (*Mapping, error) {
	start, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if end == start {
		return nil, fmt.Errorf("%w: %v is empty", ErrIO, f.Name())
	}

	length := uint64(end - start)
	addr, err := mapPrivate(f, start, length)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %v bytes of %v: %v",
			ErrResourceExhausted, length, f.Name(), err)
	}

	return &Mapping{
		length: end - start,
		ranges: []MappedRange{{addr: addr, length: length}},
	}, nil
}

// mapBlockFile reserves one contiguous region large enough for every
// block of the descriptor, then fixes each range in place inside it,
// backed by the block device. The reservation happens in a single call
// so no concurrent allocation can land inside the region before it is
// populated.
func mapBlockFile(bm *blockMap) (*Mapping, error) {
	// The parser validated this product already.
	reserveSize := bm.blockCount * bm.blockSize

	dev, err := os.Open(bm.device)
	if err != nil {
		return nil, fmt.Errorf("%w: open block device %v: %v", ErrIO, bm.device, err)
	}
	defer dev.Close()

	base, err := reserve(reserveSize)
	if err != nil {
		return nil, fmt.Errorf("%w: reserve %v bytes: %v",
			ErrResourceExhausted, reserveSize, err)
	}

	// The fixed sub-mappings below are carved out of the reservation, so
	// on any failure unmapping the whole reservation releases them too.
	abort := func() {
		if err := munmapRange(base, reserveSize); err != nil {
			log.Errorf("Failed to release reservation at %#x: %v", uintptr(base), err)
		}
	}

	ranges := make([]MappedRange, 0, len(bm.ranges))
	cursor := base
	remaining := reserveSize
	for i, r := range bm.ranges {
		length, ok := checkedMul(r.end-r.start, bm.blockSize)
		if !ok || length > remaining {
			abort()
			return nil, fmt.Errorf("%w: range %v %v exceeds mapped region",
				ErrInvalidDescriptor, r.start, r.end)
		}
		offset, ok := checkedMul(r.start, bm.blockSize)
		if !ok || offset > math.MaxInt64 {
			abort()
			return nil, fmt.Errorf("%w: range %v %v past the end of the device",
				ErrInvalidDescriptor, r.start, r.end)
		}
		if err := mapFixed(cursor, length, dev, int64(offset)); err != nil {
			abort()
			return nil, fmt.Errorf("%w: map range %v of %v at offset %v: %v",
				ErrResourceExhausted, i, bm.device, offset, err)
		}
		ranges = append(ranges, MappedRange{addr: cursor, length: length})
		cursor = unsafe.Add(cursor, uintptr(length))
		remaining -= length
	}
	if remaining != 0 {
		abort()
		return nil, fmt.Errorf("%w: ranges leave %v bytes of the reservation unmapped",
			ErrInvalidDescriptor, remaining)
	}

	log.Debugf("Mapped %v ranges of %v, %v blocks of %v bytes",
		len(ranges), bm.device, bm.blockCount, bm.blockSize)

	return &Mapping{
		length: int64(bm.size),
		ranges: ranges,
	}, nil
}
