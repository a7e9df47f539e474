package sysmap

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// A block map descriptor is a text file of the form
//
//	<block device path>
//	<size> <blksize>
//	<range count>
//	<start> <end>
//	...
//
// where size is the logical length of the file in bytes, blksize the
// device block size, and each range a half-open interval of block
// indexes on the device. The ranges, concatenated in listed order, form
// the logical file and must exactly cover ceil(size/blksize) blocks.

type blockRange struct {
	start, end uint64 // block indexes, end exclusive
}

// blockMap is the parsed descriptor. It only lives for the duration of a
// MapFile call; the resulting Mapping doesn't retain it.
type blockMap struct {
	device     string
	size       uint64 // logical length in bytes
	blockSize  uint64
	blockCount uint64 // ceil(size / blockSize)
	ranges     []blockRange
}

// checkedMul multiplies two unsigned values, reporting whether the
// result overflowed. Every size computation on descriptor input must go
// through this.
func checkedMul(a, b uint64) (uint64, bool) {
	if b != 0 && a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}

func scanLine(s *bufio.Scanner) (string, error) {
	if !s.Scan() {
		if err := s.Err(); err != nil {
			return "", fmt.Errorf("%w: reading block map: %v", ErrIO, err)
		}
		return "", fmt.Errorf("%w: unexpected end of descriptor", ErrFormat)
	}
	return s.Text(), nil
}

func scanFields(s *bufio.Scanner, count int) ([]uint64, error) {
	line, err := scanLine(s)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) != count {
		return nil, fmt.Errorf("%w: expected %v fields in %q", ErrFormat, count, line)
	}
	values := make([]uint64, count)
	for i, field := range fields {
		values[i], err = strconv.ParseUint(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: non-numeric field %q", ErrFormat, field)
		}
	}
	return values, nil
}

func parseBlockMap(r io.Reader) (*blockMap, error) {
	scanner := bufio.NewScanner(r)

	device, err := scanLine(scanner)
	if err != nil {
		return nil, err
	}

	header, err := scanFields(scanner, 2)
	if err != nil {
		return nil, err
	}
	size, blockSize := header[0], header[1]

	counts, err := scanFields(scanner, 1)
	if err != nil {
		return nil, err
	}
	rangeCount := counts[0]

	if size == 0 || blockSize == 0 || rangeCount == 0 {
		return nil, fmt.Errorf("%w: size %v, blksize %v, range count %v",
			ErrInvalidDescriptor, size, blockSize, rangeCount)
	}
	if size > math.MaxInt64 {
		return nil, fmt.Errorf("%w: size %v not addressable", ErrInvalidDescriptor, size)
	}
	blockCount := (size-1)/blockSize + 1
	mapped, ok := checkedMul(blockCount, blockSize)
	if !ok || mapped > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %v blocks of %v bytes not addressable",
			ErrInvalidDescriptor, blockCount, blockSize)
	}

	bm := &blockMap{
		device:     device,
		size:       size,
		blockSize:  blockSize,
		blockCount: blockCount,
	}

	// remaining counts down to exactly zero when the ranges tile the
	// mapped region with no gap and no overlap-by-omission.
	remaining := mapped
	for i := uint64(0); i < rangeCount; i++ {
		pair, err := scanFields(scanner, 2)
		if err != nil {
			return nil, err
		}
		start, end := pair[0], pair[1]
		if end <= start {
			return nil, fmt.Errorf("%w: range %v %v is empty or backwards",
				ErrInvalidDescriptor, start, end)
		}
		length, ok := checkedMul(end-start, blockSize)
		if !ok || length > remaining {
			return nil, fmt.Errorf("%w: range %v %v exceeds mapped region",
				ErrInvalidDescriptor, start, end)
		}
		remaining -= length
		bm.ranges = append(bm.ranges, blockRange{start: start, end: end})
	}
	if remaining != 0 {
		return nil, fmt.Errorf("%w: ranges leave %v of %v bytes uncovered",
			ErrInvalidDescriptor, remaining, mapped)
	}

	return bm, nil
}
