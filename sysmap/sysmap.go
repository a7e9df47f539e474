// Package sysmap maps package and image files into memory for read-only
// access. A file can either be an ordinary file, mapped directly, or a
// logical file reconstructed from a block map: a text descriptor naming a
// raw block device and a list of block ranges on it that form the file's
// content when concatenated.
package sysmap

import (
	"errors"
	"fmt"
	"io"
	"unsafe"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{"pkg": "sysmap"})

var (
	// ErrIO indicates an open, read or seek failure on the descriptor,
	// the block device or the file being mapped.
	ErrIO = errors.New("sysmap: i/o failure")

	// ErrFormat indicates a block map descriptor that doesn't follow the
	// line format: wrong field count or non-numeric fields.
	ErrFormat = errors.New("sysmap: malformed block map")

	// ErrInvalidDescriptor indicates a well-formed descriptor with invalid
	// content: zero sizes, arithmetic overflow, or ranges that don't
	// exactly tile the mapped region.
	ErrInvalidDescriptor = errors.New("sysmap: invalid block map")

	// ErrResourceExhausted indicates the kernel rejected a reservation or
	// mapping call.
	ErrResourceExhausted = errors.New("sysmap: cannot map")
)

// MappedRange is one contiguous region of mapped virtual memory. Ranges
// are owned by the Mapping that carries them and are never released
// individually.
type MappedRange struct {
	addr   unsafe.Pointer
	length uint64
}

// Addr returns the base address of the range.
func (r MappedRange) Addr() uintptr {
	return uintptr(r.addr)
}

// Len returns the length of the range in bytes.
func (r MappedRange) Len() int64 {
	return int64(r.length)
}

// Data returns the mapped bytes. The slice is only valid until the owning
// Mapping is released.
func (r MappedRange) Data() []byte {
	return unsafe.Slice((*byte)(r.addr), r.length)
}

// Mapping is a read-only view of a logical file held in mapped memory.
// The ranges are laid out back to back in virtual memory; concatenating
// them reproduces the file's content. The last range may extend past
// Length when the file size isn't a multiple of the device block size;
// bytes past Length are mapped but not part of the logical content.
//
// A Mapping exclusively owns its ranges. It must be released exactly once
// with Release, after which none of its data may be touched.
type Mapping struct {
	length int64
	ranges []MappedRange
}

// Length returns the logical length of the mapped file in bytes.
func (m *Mapping) Length() int64 {
	return m.length
}

// Ranges returns the mapped ranges in logical order.
func (m *Mapping) Ranges() []MappedRange {
	return m.ranges
}

// ReadAt reads from the logical content of the mapping, implementing
// io.ReaderAt. Reads are clamped at the logical length.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative read offset %v", ErrIO, off)
	}
	if off >= m.length {
		return 0, io.EOF
	}
	want := int64(len(p))
	if rest := m.length - off; want > rest {
		want = rest
	}
	var n, base int64
	for _, r := range m.ranges {
		if n == want {
			break
		}
		end := base + r.Len()
		cur := off + n
		if cur >= end {
			base = end
			continue
		}
		chunk := end - cur
		if left := want - n; chunk > left {
			chunk = left
		}
		copy(p[n:n+chunk], r.Data()[cur-base:cur-base+chunk])
		n += chunk
		base = end
	}
	if n < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// Reader returns a reader over the logical content of the mapping.
func (m *Mapping) Reader() *io.SectionReader {
	return io.NewSectionReader(m, 0, m.length)
}

// Release unmaps every range of the mapping. It must be called exactly
// once, and only on a mapping returned by MapFile or MapFd. A failure to
// unmap one range doesn't stop the remaining ranges from being released;
// all failures are reported in the returned error.
func (m *Mapping) Release() error {
	var errs []error
	for _, r := range m.ranges {
		if err := munmapRange(r.addr, r.length); err != nil {
			log.Errorf("Failed to unmap range at %#x, length %v: %v", r.Addr(), r.Len(), err)
			errs = append(errs, err)
		}
	}
	m.ranges = nil
	m.length = 0
	return errors.Join(errs...)
}
