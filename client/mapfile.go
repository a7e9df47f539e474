package client

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/urfave/cli"

	"github.com/openrecovery/blkmap/api"
	"github.com/openrecovery/blkmap/sysmap"
	"github.com/openrecovery/blkmap/util"
)

var (
	inspectCmd = cli.Command{
		Name:   "inspect",
		Usage:  "map a file and show its memory layout: inspect <path>",
		Action: cmdInspect,
	}

	dumpCmd = cli.Command{
		Name:  "dump",
		Usage: "write the logical content of a file to stdout: dump <path> [options]",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "output, o",
				Usage: "write content to this file instead of stdout",
			},
			cli.BoolFlag{
				Name:  "compress",
				Usage: "gzip the output",
			},
		},
		Action: cmdDump,
	}

	checksumCmd = cli.Command{
		Name:   "checksum",
		Usage:  "print the checksum of a file's logical content: checksum <path>",
		Action: cmdChecksum,
	}
)

// getPath returns the file argument of a command. A path starting with
// "@" names a block map descriptor, anything else a regular file.
func getPath(c *cli.Context) (string, error) {
	path := c.Args().First()
	if path == "" {
		return "", fmt.Errorf("Missing required parameter: path")
	}
	return path, nil
}

func cmdInspect(c *cli.Context) {
	if err := doInspect(c); err != nil {
		panic(err)
	}
}

func doInspect(c *cli.Context) error {
	path, err := getPath(c)
	if err != nil {
		return err
	}

	mapping, err := sysmap.MapFile(path)
	if err != nil {
		return err
	}
	defer mapping.Release()

	data, err := api.ResponseOutput(api.NewMappingResponse(path, mapping))
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func cmdDump(c *cli.Context) {
	if err := doDump(c); err != nil {
		panic(err)
	}
}

func doDump(c *cli.Context) error {
	path, err := getPath(c)
	if err != nil {
		return err
	}

	mapping, err := sysmap.MapFile(path)
	if err != nil {
		return err
	}
	defer mapping.Release()

	out := os.Stdout
	if output := c.String("output"); output != "" {
		out, err = os.Create(output)
		if err != nil {
			return err
		}
		defer out.Close()
	}

	var w io.Writer = out
	var gz *gzip.Writer
	if c.Bool("compress") {
		gz = gzip.NewWriter(out)
		w = gz
	}

	n, err := io.Copy(w, mapping.Reader())
	if err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return err
		}
	}
	log.Debugf("Dumped %v of %v bytes of %v", n, mapping.Length(), path)
	return nil
}

func cmdChecksum(c *cli.Context) {
	if err := doChecksum(c); err != nil {
		panic(err)
	}
}

func doChecksum(c *cli.Context) error {
	path, err := getPath(c)
	if err != nil {
		return err
	}

	mapping, err := sysmap.MapFile(path)
	if err != nil {
		return err
	}
	defer mapping.Release()

	checksum, err := util.GetChecksum(mapping.Reader())
	if err != nil {
		return err
	}
	fmt.Println(checksum)
	return nil
}
