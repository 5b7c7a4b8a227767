package watcher

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Darkness4/go-remux/notify"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of the watcher.
type Config struct {
	Directories []Directory `yaml:"directories"`
	// Concurrency is the number of remuxes running at the same time.
	Concurrency int `yaml:"concurrency,omitempty"`
	// Debounce is the quiet period after the last write of a file before it
	// is remuxed.
	Debounce time.Duration `yaml:"debounce,omitempty"`
	// Retries is the number of tries of a remux.
	Retries    int           `yaml:"retries,omitempty"`
	RetryDelay time.Duration `yaml:"retryDelay,omitempty"`
	// Ledger is the path of the file recording the finished remuxes. When
	// empty, the ledger is kept in memory.
	Ledger   string         `yaml:"ledger,omitempty"`
	Clean    CleanConfig    `yaml:"clean,omitempty"`
	Notifier NotifierConfig `yaml:"notifier,omitempty"`
}

// Directory is a watched directory.
type Directory struct {
	Path      string `yaml:"path"`
	Recursive bool   `yaml:"recursive,omitempty"`
	// Extensions of the inputs. Defaults to ".ts".
	Extensions []string `yaml:"extensions,omitempty"`
	// Format is the extension of the outputs. Defaults to "mp4".
	Format string `yaml:"format,omitempty"`
	// Output is the directory of the outputs. Defaults to the directory of
	// the input.
	Output string `yaml:"output,omitempty"`
	// AudioOnly keeps the audio streams only.
	AudioOnly bool `yaml:"audioOnly,omitempty"`
	// ExtractAudio also writes an audio-only m4a next to the output.
	ExtractAudio bool              `yaml:"extractAudio,omitempty"`
	Labels       map[string]string `yaml:"labels,omitempty"`
}

// CleanConfig configures the periodic removal of remuxed sources.
type CleanConfig struct {
	Enabled  bool          `yaml:"enabled,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
	MinAge   time.Duration `yaml:"minAge,omitempty"`
	DryRun   bool          `yaml:"dryRun,omitempty"`
}

// NotifierConfig configures the notifications.
type NotifierConfig struct {
	Enabled                    bool     `yaml:"enabled,omitempty"`
	Gotify                     Gotify   `yaml:"gotify,omitempty"`
	URLs                       []string `yaml:"urls,omitempty"`
	notify.NotificationFormats `yaml:"notificationFormats,omitempty"`
}

// Gotify is a gotify server.
type Gotify struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	Token    string `yaml:"token,omitempty"`
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// LoadConfig decodes a YAML config and applies the defaults.
func LoadConfig(r io.Reader) (*Config, error) {
	config := &Config{}
	if err := yaml.NewDecoder(r).Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.Debounce <= 0 {
		c.Debounce = 5 * time.Second
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.Clean.Interval <= 0 {
		c.Clean.Interval = time.Hour
	}
	if c.Clean.MinAge <= 0 {
		c.Clean.MinAge = 48 * time.Hour
	}
	for i := range c.Directories {
		d := &c.Directories[i]
		if len(d.Extensions) == 0 {
			d.Extensions = []string{".ts"}
		}
		for j, ext := range d.Extensions {
			d.Extensions[j] = normalizeExtension(ext)
		}
		if d.Format == "" {
			d.Format = "mp4"
		}
		d.Format = strings.TrimPrefix(normalizeExtension(d.Format), ".")
		if d.Path != "" {
			d.Path = filepath.Clean(d.Path)
		}
	}
}

// Validate checks that the config is usable.
func (c *Config) Validate() error {
	if len(c.Directories) == 0 {
		return fmt.Errorf("%w: no directory", ErrInvalidConfig)
	}
	for _, d := range c.Directories {
		if d.Path == "" {
			return fmt.Errorf("%w: empty path", ErrInvalidConfig)
		}
		outputs := []string{"." + d.Format}
		if d.ExtractAudio {
			outputs = append(outputs, ".m4a")
		}
		for _, out := range outputs {
			if slices.Contains(d.Extensions, out) {
				return fmt.Errorf(
					"%w: %s: output extension %s is also an input extension",
					ErrInvalidConfig, d.Path, out,
				)
			}
		}
	}
	return nil
}

// match returns the directory config of path.
func (c *Config) match(path string) (*Directory, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	var best *Directory
	for i := range c.Directories {
		d := &c.Directories[i]
		rel, err := filepath.Rel(d.Path, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if !d.Recursive && filepath.Dir(rel) != "." {
			continue
		}
		if !slices.Contains(d.Extensions, ext) {
			continue
		}
		// Deepest directory wins.
		if best == nil || len(d.Path) > len(best.Path) {
			best = d
		}
	}
	return best, best != nil
}
