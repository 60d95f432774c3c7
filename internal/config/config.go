// Package config loads the YAML document describing which scenes and
// channels a termscene invocation wires up. Grounded on the shape of h2's
// own config.go: a Load/LoadFrom pair reading a YAML document into typed
// structs, with a validate pass after unmarshal.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/dcosson/termscene/internal/channel"
	"github.com/dcosson/termscene/internal/gateway"
	"github.com/dcosson/termscene/internal/scene"
	"github.com/dcosson/termscene/internal/shellscene"
)

// Config is the top-level document: an ordered list of scenes to
// assemble into a Composite, and an ordered list of channels to start.
type Config struct {
	Scenes   []SceneConfig   `yaml:"scenes"`
	Channels []ChannelConfig `yaml:"channels"`
}

// SceneConfig describes one scene to build. Kind selects which reference
// scene implementation to construct; only "shell" is built in.
type SceneConfig struct {
	Kind         string `yaml:"kind"`
	Priority     int    `yaml:"priority"`
	Prompt       string `yaml:"prompt"`
	PromptPrefix string `yaml:"prompt_prefix"`
}

// ChannelConfig describes one channel to start. "console" builds a
// channel.Console; "paged" wraps a fresh console with channel.Paged using
// MaxLen/MaxPages (0 selects the package defaults).
type ChannelConfig struct {
	Kind     string `yaml:"kind"`
	MaxLen   int    `yaml:"max_len"`
	MaxPages int    `yaml:"max_pages"`
}

// ConfigDir returns the termscene configuration directory (~/.termscene/).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".termscene")
	}
	return filepath.Join(home, ".termscene")
}

// Load reads the config from ~/.termscene/config.yaml. If the file does
// not exist, it returns an empty Config with no error.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(ConfigDir(), "config.yaml"))
}

// LoadFrom reads a config document from path, expanding ${NAME} and
// ${NAME:default} placeholders against the environment before parsing.
// If the file does not exist, it returns an empty Config with no error.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	expanded := expandPlaceholders(data)
	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}`)

// expandPlaceholders replaces ${NAME} with the environment variable NAME
// (empty if unset) and ${NAME:default} with NAME's value or default if
// NAME is unset or empty.
func expandPlaceholders(raw []byte) []byte {
	return placeholderRe.ReplaceAllFunc(raw, func(match []byte) []byte {
		sub := placeholderRe.FindSubmatch(match)
		name, def := string(sub[1]), string(sub[2])
		if val, ok := os.LookupEnv(name); ok && val != "" {
			return []byte(val)
		}
		return []byte(def)
	})
}

var kindRe = regexp.MustCompile(`^[a-z_]+$`)

func (c *Config) validate() error {
	for i, s := range c.Scenes {
		if !kindRe.MatchString(s.Kind) {
			return fmt.Errorf("scenes[%d]: invalid kind %q", i, s.Kind)
		}
		if s.Kind == "shell" && s.Prompt == "" {
			return fmt.Errorf("scenes[%d]: kind \"shell\" requires prompt", i)
		}
		if s.Kind != "shell" {
			return fmt.Errorf("scenes[%d]: unrecognized kind %q", i, s.Kind)
		}
	}
	for i, ch := range c.Channels {
		if !kindRe.MatchString(ch.Kind) {
			return fmt.Errorf("channels[%d]: invalid kind %q", i, ch.Kind)
		}
	}
	return nil
}

// BuildScenes assembles the configured scenes into a single Composite, or
// nil if none are configured.
func (c *Config) BuildScenes() (*scene.Composite, error) {
	if len(c.Scenes) == 0 {
		return nil, nil
	}
	scenes := make([]scene.Scene, 0, len(c.Scenes))
	for i, s := range c.Scenes {
		built, err := buildScene(s)
		if err != nil {
			return nil, fmt.Errorf("scenes[%d]: %w", i, err)
		}
		scenes = append(scenes, built)
	}
	return scene.NewComposite(0, scenes), nil
}

func buildScene(s SceneConfig) (scene.Scene, error) {
	switch s.Kind {
	case "shell":
		promptRe, err := regexp.Compile(s.Prompt)
		if err != nil {
			return nil, fmt.Errorf("compile prompt: %w", err)
		}
		var promptPrefixRe *regexp.Regexp
		if s.PromptPrefix != "" {
			promptPrefixRe, err = regexp.Compile(s.PromptPrefix)
			if err != nil {
				return nil, fmt.Errorf("compile prompt_prefix: %w", err)
			}
		}
		return shellscene.New(s.Priority, promptRe, promptPrefixRe), nil
	default:
		return nil, fmt.Errorf("unrecognized scene kind %q", s.Kind)
	}
}

// BuildChannels constructs the configured channels in order.
func (c *Config) BuildChannels() ([]gateway.Channel, error) {
	channels := make([]gateway.Channel, 0, len(c.Channels))
	for i, ch := range c.Channels {
		built, err := buildChannel(ch)
		if err != nil {
			return nil, fmt.Errorf("channels[%d]: %w", i, err)
		}
		channels = append(channels, built)
	}
	return channels, nil
}

func buildChannel(ch ChannelConfig) (gateway.Channel, error) {
	switch ch.Kind {
	case "console":
		return channel.NewConsole(), nil
	case "paged":
		p := channel.NewPaged(channel.NewConsole())
		if ch.MaxLen != 0 {
			p.MaxLen = ch.MaxLen
		}
		if ch.MaxPages != 0 {
			p.MaxPages = ch.MaxPages
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unrecognized channel kind %q", ch.Kind)
	}
}
