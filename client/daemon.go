package client

import (
	"github.com/urfave/cli"

	"github.com/openrecovery/blkmap/daemon"
)

var (
	daemonCmd = cli.Command{
		Name:  "daemon",
		Usage: "start blkmap daemon serving mapped content over HTTP: daemon [options] <path>...",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "socket, s",
				Value: "/var/run/blkmap/blkmap.sock",
				Usage: "Specify unix domain socket the daemon listens on",
			},
		},
		Action: cmdStartDaemon,
	}
)

func cmdStartDaemon(c *cli.Context) {
	if err := startDaemon(c); err != nil {
		panic(err)
	}
}

func startDaemon(c *cli.Context) error {
	return daemon.Start(c.String("socket"), c)
}
