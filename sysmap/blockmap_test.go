package sysmap

import (
	"errors"
	"strings"

	. "gopkg.in/check.v1"
)

func parse(content string) (*blockMap, error) {
	return parseBlockMap(strings.NewReader(content))
}

func (s *TestSuite) TestParseBlockMap(c *C) {
	bm, err := parse("/dev/block/mmcblk0p1\n4100 4096\n2\n0 1\n7 8\n")
	c.Assert(err, IsNil)
	c.Assert(bm.device, Equals, "/dev/block/mmcblk0p1")
	c.Assert(bm.size, Equals, uint64(4100))
	c.Assert(bm.blockSize, Equals, uint64(4096))
	c.Assert(bm.blockCount, Equals, uint64(2))
	c.Assert(bm.ranges, HasLen, 2)
	c.Assert(bm.ranges[0], Equals, blockRange{start: 0, end: 1})
	c.Assert(bm.ranges[1], Equals, blockRange{start: 7, end: 8})
}

func (s *TestSuite) TestParseBlockCount(c *C) {
	bm, err := parse("/dev/sda\n100 50\n1\n0 2\n")
	c.Assert(err, IsNil)
	c.Assert(bm.blockCount, Equals, uint64(2))

	bm, err = parse("/dev/sda\n101 50\n1\n0 3\n")
	c.Assert(err, IsNil)
	c.Assert(bm.blockCount, Equals, uint64(3))

	bm, err = parse("/dev/sda\n1 50\n1\n4 5\n")
	c.Assert(err, IsNil)
	c.Assert(bm.blockCount, Equals, uint64(1))
}

func (s *TestSuite) TestParseZeroFields(c *C) {
	for _, content := range []string{
		"/dev/sda\n0 50\n1\n0 2\n",
		"/dev/sda\n100 0\n1\n0 2\n",
		"/dev/sda\n100 50\n0\n",
	} {
		bm, err := parse(content)
		c.Assert(bm, IsNil)
		c.Assert(errors.Is(err, ErrInvalidDescriptor), Equals, true)
	}
}

func (s *TestSuite) TestParseBackwardsRange(c *C) {
	for _, content := range []string{
		"/dev/sda\n100 50\n1\n2 2\n",
		"/dev/sda\n100 50\n1\n3 1\n",
	} {
		bm, err := parse(content)
		c.Assert(bm, IsNil)
		c.Assert(errors.Is(err, ErrInvalidDescriptor), Equals, true)
	}
}

func (s *TestSuite) TestParseMalformed(c *C) {
	for _, content := range []string{
		"",
		"/dev/sda\n",
		"/dev/sda\n100\n1\n0 2\n",
		"/dev/sda\n100 50 7\n1\n0 2\n",
		"/dev/sda\nabc 50\n1\n0 2\n",
		"/dev/sda\n100 50\none\n0 2\n",
		"/dev/sda\n100 50\n2\n0 2\n",
		"/dev/sda\n100 50\n1\n0\n",
		"/dev/sda\n100 50\n1\n-1 2\n",
	} {
		bm, err := parse(content)
		c.Assert(bm, IsNil)
		c.Assert(errors.Is(err, ErrFormat), Equals, true,
			Commentf("content %q got %v", content, err))
	}
}

func (s *TestSuite) TestParseOverflow(c *C) {
	for _, content := range []string{
		// size past int64 range
		"/dev/sda\n18446744073709551615 4096\n1\n0 1\n",
		// blockCount * blockSize rounds up past the addressable range
		"/dev/sda\n9223372036854775807 4096\n1\n0 1\n",
		// (end - start) * blockSize overflows
		"/dev/sda\n100 50\n1\n0 18446744073709551615\n",
	} {
		bm, err := parse(content)
		c.Assert(bm, IsNil)
		c.Assert(errors.Is(err, ErrInvalidDescriptor), Equals, true,
			Commentf("content %q got %v", content, err))
	}
}

func (s *TestSuite) TestParseCoverage(c *C) {
	// Exact tiling is required, in any order.
	bm, err := parse("/dev/sda\n200 50\n2\n2 4\n0 2\n")
	c.Assert(err, IsNil)
	c.Assert(bm.ranges, HasLen, 2)

	bm, err = parse("/dev/sda\n200 50\n1\n0 2\n")
	c.Assert(bm, IsNil)
	c.Assert(errors.Is(err, ErrInvalidDescriptor), Equals, true)

	bm, err = parse("/dev/sda\n200 50\n2\n0 4\n4 5\n")
	c.Assert(bm, IsNil)
	c.Assert(errors.Is(err, ErrInvalidDescriptor), Equals, true)
}

func (s *TestSuite) TestCheckedMul(c *C) {
	v, ok := checkedMul(1<<32, 1<<31)
	c.Assert(ok, Equals, true)
	c.Assert(v, Equals, uint64(1)<<63)

	_, ok = checkedMul(1<<32, 1<<32)
	c.Assert(ok, Equals, false)

	v, ok = checkedMul(42, 0)
	c.Assert(ok, Equals, true)
	c.Assert(v, Equals, uint64(0))
}
