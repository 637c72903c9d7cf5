// internal/writer/influx/client.go

// Package influx talks to an InfluxDB 1.x server over its HTTP API.
package influx

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/tamzrod/masermon/internal/measurement"
)

// Config is one server. Addr, when set, replaces the URL derived from
// Host, Port and TLS.
type Config struct {
	Addr               string
	Host               string
	Port               int
	TLS                bool
	InsecureSkipVerify bool
	Username           string
	Password           string
	Timeout            time.Duration
}

func (c Config) URL() string {
	if c.Addr != "" {
		return c.Addr
	}
	scheme := "http"
	if c.TLS {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type Client struct {
	http client.Client
	db   string
}

func New(cfg Config) (*Client, error) {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:               cfg.URL(),
		Username:           cfg.Username,
		Password:           cfg.Password,
		Timeout:            cfg.Timeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("influx: %w", err)
	}
	return &Client{http: c}, nil
}

// EnsureDatabase issues CREATE DATABASE, which is a no-op for an existing
// database, and selects it for writes.
func (c *Client) EnsureDatabase(name string) error {
	if name == "" {
		return errors.New("influx: database name required")
	}
	resp, err := c.http.Query(client.NewQuery("CREATE DATABASE "+quoteIdent(name), "", ""))
	if err != nil {
		return fmt.Errorf("influx: create database %s: %w", name, err)
	}
	if err := resp.Error(); err != nil {
		return fmt.Errorf("influx: create database %s: %w", name, err)
	}
	c.db = name
	return nil
}

// WritePoints sends ms as one batch at nanosecond precision.
func (c *Client) WritePoints(ms []measurement.Measurement) error {
	if c.db == "" {
		return errors.New("influx: no database selected")
	}

	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  c.db,
		Precision: "ns",
	})
	if err != nil {
		return fmt.Errorf("influx: %w", err)
	}

	for _, m := range ms {
		pt, err := client.NewPoint(m.Name, m.Tags, m.Fields, m.Time)
		if err != nil {
			return fmt.Errorf("influx: point %s: %w", m.Name, err)
		}
		bp.AddPoint(pt)
	}

	if err := c.http.Write(bp); err != nil {
		return fmt.Errorf("influx: write: %w", err)
	}
	return nil
}

func (c *Client) Close() error { return c.http.Close() }

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}
