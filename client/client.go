package client

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var (
	log = logrus.WithFields(logrus.Fields{"pkg": "client"})
)

func cmdNotFound(c *cli.Context, command string) {
	panic(fmt.Errorf("Unrecognized command: %s", command))
}

// NewCli would generate blkmap CLI
func NewCli(version string) *cli.App {
	app := cli.NewApp()
	app.Name = "blkmap"
	app.Version = version
	app.Usage = "Map package and image files into memory, directly or through block map descriptors"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug, d",
			Usage: "Enable debug level log",
		},
		cli.StringFlag{
			Name:  "log",
			Usage: "specific output log file, otherwise output to stdout by default",
		},
		cli.StringFlag{
			Name:  "root",
			Value: "/var/lib/blkmap",
			Usage: "specific root directory of blkmap, used by the daemon for its lock file",
		},
	}
	app.CommandNotFound = cmdNotFound
	app.Before = initClient
	app.Commands = []cli.Command{
		daemonCmd,
		inspectCmd,
		dumpCmd,
		checksumCmd,
	}
	return app
}

func initClient(c *cli.Context) error {
	logrus.SetOutput(os.Stderr)
	if c.GlobalBool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return nil
}
