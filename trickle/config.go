//nolint:errcheck
package trickle

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/SpatiumPortae/trickle/internal/config"
)

// DefaultRate is the rate used when a config does not set one, in bytes per second.
const DefaultRate = 64 << 10

// defaultConfig specifies the default config for the trickle module.
var defaultConfig = Config{
	Rate:    DefaultRate,
	Backlog: config.DEFAULT_BACKLOG,
}

// Config specifies a config for the trickle module.
type Config struct {
	// Rate is the per connection limit in bytes per second.
	Rate int64 `json:"Rate,omitempty"`
	// Root is the directory requested files are served from.
	Root string `json:"Root,omitempty"`
	// Backlog is the listen queue length.
	Backlog int `json:"Backlog,omitempty"`
	// MetricsAddr enables the metrics endpoint when set.
	MetricsAddr string `json:"MetricsAddr,omitempty"`
}

// MergeConfigReader merges the config from the reader
// with into the provided config. Values in the reader
// will override values in the provided config
func MergeConfigReader(dst Config, r io.Reader) Config {
	json.NewDecoder(r).Decode(&dst)
	return dst
}

// MergeConfig merges the specified source config into the
// specified destination config. Values present in the source
// config will overide values in the destination config.
func MergeConfig(dst Config, src *Config) Config {
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(src)
	return MergeConfigReader(dst, &buf)
}
