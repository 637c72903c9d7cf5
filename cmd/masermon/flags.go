// cmd/masermon/flags.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/tamzrod/masermon/internal/config"
)

// options holds the command line. Only flags the user actually set are
// laid over the config file.
type options struct {
	fs *flag.FlagSet

	configPath string
	host       string
	port       int
	database   string
	maserID    string
	device     string
	baudRate   int
	logRate    float64 // seconds
	metrics    string
	logLevel   string

	protocol string
}

func parseArgs(args []string, out io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("masermon", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&o.configPath, "config", "", "YAML or TOML config `file`")
	fs.StringVar(&o.host, "host", config.DefaultHost, "database host")
	fs.IntVar(&o.port, "port", config.DefaultPort, "database port")
	fs.StringVar(&o.database, "database", config.DefaultDatabase, "database name")
	fs.StringVar(&o.maserID, "maserid", config.DefaultName, "measurement name")
	fs.StringVar(&o.device, "device", config.DefaultDevice, "serial device or tcp://host:port")
	fs.IntVar(&o.baudRate, "baudrate", 0, "line speed (0: 9600, ticcts 115200, vedirect 19200)")
	fs.Float64Var(&o.logRate, "lograte", config.DefaultIntervalMs/1000, "seconds between polls")
	fs.StringVar(&o.metrics, "metrics", "", "metrics listen `address`, empty disables")
	fs.StringVar(&o.logLevel, "log-level", "", "trace, debug, info, warn or error")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: masermon [options] <%s>\n\n", strings.Join(config.Protocols, "|"))
		fs.PrintDefaults()
	}
	o.fs = fs

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		o.protocol = fs.Arg(0)
		// options may also follow the subcommand
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return nil, err
		}
		if fs.NArg() > 0 {
			return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
		}
	}
	if o.protocol != "" && !slices.Contains(config.Protocols, o.protocol) {
		fs.Usage()
		return nil, fmt.Errorf("unknown subcommand %q", o.protocol)
	}
	return o, nil
}

// load reads the config file, if any, and applies the explicit flags.
func (o *options) load() (*config.Config, error) {
	c := &config.Config{}
	if o.configPath != "" {
		var err error
		if c, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}
	o.overlay(c)

	if c.Device.Protocol == "" {
		o.fs.Usage()
		return nil, errors.New("no subcommand given and no device.protocol in config")
	}
	return c, nil
}

func (o *options) overlay(c *config.Config) {
	if o.protocol != "" {
		c.Device.Protocol = o.protocol
	}
	o.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			c.Sink.Host = o.host
		case "port":
			c.Sink.Port = o.port
		case "database":
			c.Sink.Database = o.database
		case "maserid":
			c.Device.Name = o.maserID
		case "device":
			c.Device.Transport.Address = o.device
		case "baudrate":
			c.Device.Transport.BaudRate = o.baudRate
		case "lograte":
			c.Poll.IntervalMs = int(math.Round(o.logRate * 1000))
		case "metrics":
			c.Metrics.Listen = o.metrics
		case "log-level":
			c.Log.Level = o.logLevel
		}
	})
}
