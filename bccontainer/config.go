// Package bccontainer reads service configuration out of Business Central
// and NAV containers.
package bccontainer

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultConfigPath is where NAV and BC server images keep their service
// settings. The wildcard covers the versioned service directory and is
// expanded by the PowerShell inside the container, never locally.
const DefaultConfigPath = `C:\Program Files\Microsoft Dynamics NAV\*\Service\CustomSettings.config`

// Setting is a single key/value pair from the service configuration.
type Setting struct {
	Key   string
	Value string
}

// ServerConfiguration is the flattened contents of one container's
// CustomSettings.config, in file order, tagged with the container it came
// from.
type ServerConfiguration struct {
	ContainerName string

	settings []Setting
	index    map[string]int
}

// Get looks up a setting by key. Lookup is case-insensitive, matching how
// the server treats the settings.
func (c *ServerConfiguration) Get(key string) (string, bool) {
	i, ok := c.index[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	return c.settings[i].Value, true
}

// Settings returns all settings in file order.
func (c *ServerConfiguration) Settings() []Setting {
	out := make([]Setting, len(c.settings))
	copy(out, c.settings)
	return out
}

// Keys returns all setting keys in file order.
func (c *ServerConfiguration) Keys() []string {
	keys := make([]string, len(c.settings))
	for i, s := range c.settings {
		keys[i] = s.Key
	}
	return keys
}

// Len returns the number of settings.
func (c *ServerConfiguration) Len() int {
	return len(c.settings)
}

// add records a setting. A repeated key keeps its first position but takes
// the later value, the way the server itself reads the file.
func (c *ServerConfiguration) add(key, value string) {
	lower := strings.ToLower(key)
	if i, ok := c.index[lower]; ok {
		c.settings[i].Value = value
		return
	}
	c.index[lower] = len(c.settings)
	c.settings = append(c.settings, Setting{Key: key, Value: value})
}

// Reader reads server configuration from containers through an Executor.
type Reader struct {
	exec       Executor
	logger     *slog.Logger
	configPath string
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithLogger enables logging of configuration reads.
func WithLogger(logger *slog.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithConfigPath overrides the in-container path of the configuration file.
func WithConfigPath(path string) ReaderOption {
	return func(r *Reader) {
		r.configPath = path
	}
}

// NewReader creates a Reader that reaches containers through exec.
func NewReader(exec Executor, opts ...ReaderOption) *Reader {
	r := &Reader{
		exec:       exec,
		configPath: DefaultConfigPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ServerConfiguration opens a shell into the named container, reads
// CustomSettings.config and flattens its appSettings into a
// ServerConfiguration. Failures to reach the container, read the file or
// parse it are returned as-is; there are no retries.
func (r *Reader) ServerConfiguration(ctx context.Context, containerName string) (*ServerConfiguration, error) {
	script := fmt.Sprintf(`Get-Content -Raw -Path (Get-Item '%s').FullName`, r.configPath)

	if r.logger != nil {
		r.logger.InfoContext(ctx, "reading server configuration",
			"container", containerName,
			"path", r.configPath)
	}

	out, err := r.exec.Run(ctx, containerName, script)
	if err != nil {
		return nil, err
	}

	cfg, err := parseCustomSettings(out)
	if err != nil {
		return nil, fmt.Errorf("bccontainer: parsing CustomSettings.config from container %s: %w", containerName, err)
	}
	cfg.ContainerName = containerName

	if r.logger != nil {
		r.logger.DebugContext(ctx, "server configuration read",
			"container", containerName,
			"settings", cfg.Len())
	}
	return cfg, nil
}

// parseCustomSettings flattens <appSettings><add Key=... Value=.../> into an
// ordered configuration.
func parseCustomSettings(data string) (*ServerConfiguration, error) {
	// PowerShell output may lead with a UTF-8 BOM, which the XML decoder
	// rejects.
	data = strings.TrimPrefix(data, "\ufeff")

	var doc struct {
		XMLName xml.Name     `xml:"appSettings"`
		Add     []addElement `xml:"add"`
	}
	if err := xml.Unmarshal([]byte(data), &doc); err != nil {
		return nil, err
	}

	cfg := &ServerConfiguration{
		index: make(map[string]int, len(doc.Add)),
	}
	for _, el := range doc.Add {
		cfg.add(el.Key, el.Value)
	}
	return cfg, nil
}

// addElement decodes one add element, accepting its Key and Value attributes
// in any casing. CustomSettings.config writes them capitalized, unlike the
// lowercase appSettings convention everywhere else.
type addElement struct {
	Key   string
	Value string
}

func (a *addElement) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch {
		case strings.EqualFold(attr.Name.Local, "key"):
			a.Key = attr.Value
		case strings.EqualFold(attr.Name.Local, "value"):
			a.Value = attr.Value
		}
	}
	return d.Skip()
}
