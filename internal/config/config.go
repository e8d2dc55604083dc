package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config models cylcview.yaml.
type Config struct {
	Server struct {
		// URL is the base address of the UI server.
		URL  string `yaml:"url"`
		Path string `yaml:"path"`
		// PingInterval keeps idle subscriptions alive.
		PingInterval time.Duration `yaml:"ping_interval"`
	} `yaml:"server"`
	Workflow struct {
		ID string `yaml:"id"`
	} `yaml:"workflow"`
	Journal struct {
		DSN string `yaml:"dsn"`
	} `yaml:"journal"`
	Output struct {
		Format string `yaml:"format"`
		Color  bool   `yaml:"color"`
	} `yaml:"output"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.Server.URL = "http://localhost:8080"
	c.Server.Path = "/graphql"
	c.Server.PingInterval = 30 * time.Second
	c.Journal.DSN = ":memory:"
	c.Output.Format = FormatText
	c.Output.Color = true
	return c
}

// Load reads the file at path over the defaults. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		c := Default()
		return c, c.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	c, err := FromYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FromYAML decodes data over the defaults and validates the result.
// Unknown keys are rejected.
func FromYAML(data []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Endpoint returns the GraphQL endpoint, URL joined with Path.
func (c *Config) Endpoint() string {
	u, err := url.JoinPath(c.Server.URL, c.Server.Path)
	if err != nil {
		return c.Server.URL + c.Server.Path
	}
	return u
}

// Validate checks c against the schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c.values()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		verr := &ValidationError{}
		for _, e := range cueerrors.Errors(err) {
			verr.Problems = append(verr.Problems, e.Error())
		}
		return verr
	}
	return nil
}

// values mirrors c with the field names the schema uses.
func (c *Config) values() map[string]any {
	return map[string]any{
		"server": map[string]any{
			"url":          c.Server.URL,
			"path":         c.Server.Path,
			"pingInterval": int64(c.Server.PingInterval),
		},
		"workflow": map[string]any{"id": c.Workflow.ID},
		"journal":  map[string]any{"dsn": c.Journal.DSN},
		"output": map[string]any{
			"format": c.Output.Format,
			"color":  c.Output.Color,
		},
	}
}
