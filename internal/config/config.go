// Package config resolves bottega-chat settings from defaults, an optional YAML file,
// BOTTEGA_* environment variables and command-line flags, in increasing precedence.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	AppName   = "bottega-chat"
	EnvPrefix = "BOTTEGA"

	DefaultBackendURL = "http://127.0.0.1:10000"
	DefaultChatPath   = "/chat"
	DefaultStubAddr   = "127.0.0.1:10000"
)

// Keys shared by viper, the YAML file and (with '-' instead of '_') the flags.
const (
	KeyBackendURL         = "backend_url"
	KeyChatPath           = "chat_path"
	KeyThreadID           = "thread_id"
	KeyRequestTimeout     = "request_timeout"
	KeyCollapseWhitespace = "collapse_whitespace"
	KeyLogLevel           = "log_level"
	KeyLogFile            = "log_file"
	KeyAltScreen          = "alt_screen"
	KeyMarkdownStyle      = "markdown_style"
	KeyStubAddr           = "stub_addr"
	KeyStubStyle          = "stub_style"
)

type Config struct {
	BackendURL         string        `mapstructure:"backend_url"`
	ChatPath           string        `mapstructure:"chat_path"`
	ThreadID           string        `mapstructure:"thread_id"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	CollapseWhitespace bool          `mapstructure:"collapse_whitespace"`
	LogLevel           string        `mapstructure:"log_level"`
	LogFile            string        `mapstructure:"log_file"`
	AltScreen          bool          `mapstructure:"alt_screen"`
	MarkdownStyle      string        `mapstructure:"markdown_style"`
	StubAddr           string        `mapstructure:"stub_addr"`
	StubStyle          string        `mapstructure:"stub_style"`
}

// New returns a viper instance with defaults and environment lookup configured.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBackendURL, DefaultBackendURL)
	v.SetDefault(KeyChatPath, DefaultChatPath)
	v.SetDefault(KeyThreadID, "")
	// zero: a slow backend keeps the turn open until it answers
	v.SetDefault(KeyRequestTimeout, time.Duration(0))
	v.SetDefault(KeyCollapseWhitespace, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyAltScreen, true)
	v.SetDefault(KeyMarkdownStyle, "")
	v.SetDefault(KeyStubAddr, DefaultStubAddr)
	v.SetDefault(KeyStubStyle, "banner")
}

// DefaultPath is $XDG_CONFIG_HOME/bottega-chat/config.yaml (or the platform
// equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ""
	}
	return filepath.Join(dir, AppName, "config.yaml")
}

// Load reads path into v (or the default path when it exists) and decodes the
// merged settings. An explicitly named file must exist.
func Load(v *viper.Viper, path string) (Config, error) {
	path = strings.TrimSpace(path)
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil || explicit {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, errors.Wrapf(err, "failed to read config file %s", path)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}
	return cfg.Validate()
}

// Validate normalizes cfg and rejects values that cannot work.
func (c Config) Validate() (Config, error) {
	c.BackendURL = strings.TrimRight(strings.TrimSpace(c.BackendURL), "/")
	if c.BackendURL == "" {
		return c, errors.New("backend_url must not be empty")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return c, errors.Wrapf(err, "invalid backend_url %q", c.BackendURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return c, errors.Errorf("backend_url %q must use http or https", c.BackendURL)
	}
	if u.Host == "" {
		return c, errors.Errorf("backend_url %q has no host", c.BackendURL)
	}

	c.ChatPath = strings.TrimSpace(c.ChatPath)
	if c.ChatPath == "" {
		c.ChatPath = DefaultChatPath
	}
	if !strings.HasPrefix(c.ChatPath, "/") {
		c.ChatPath = "/" + c.ChatPath
	}
	if c.RequestTimeout < 0 {
		c.RequestTimeout = 0
	}
	c.ThreadID = strings.TrimSpace(c.ThreadID)

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return c, errors.Wrapf(err, "invalid log_level %q", c.LogLevel)
	}
	c.LogFile = strings.TrimSpace(c.LogFile)
	c.MarkdownStyle = strings.TrimSpace(c.MarkdownStyle)
	c.StubAddr = strings.TrimSpace(c.StubAddr)
	if c.StubAddr == "" {
		c.StubAddr = DefaultStubAddr
	}
	c.StubStyle = strings.ToLower(strings.TrimSpace(c.StubStyle))
	return c, nil
}

type yamlView struct {
	BackendURL         string `yaml:"backend_url"`
	ChatPath           string `yaml:"chat_path"`
	ThreadID           string `yaml:"thread_id,omitempty"`
	RequestTimeout     string `yaml:"request_timeout"`
	CollapseWhitespace bool   `yaml:"collapse_whitespace"`
	LogLevel           string `yaml:"log_level"`
	LogFile            string `yaml:"log_file,omitempty"`
	AltScreen          bool   `yaml:"alt_screen"`
	MarkdownStyle      string `yaml:"markdown_style,omitempty"`
	StubAddr           string `yaml:"stub_addr"`
	StubStyle          string `yaml:"stub_style"`
}

// YAML renders the effective settings in the config file format.
func (c Config) YAML() (string, error) {
	buf, err := yaml.Marshal(yamlView{
		BackendURL:         c.BackendURL,
		ChatPath:           c.ChatPath,
		ThreadID:           c.ThreadID,
		RequestTimeout:     c.RequestTimeout.String(),
		CollapseWhitespace: c.CollapseWhitespace,
		LogLevel:           c.LogLevel,
		LogFile:            c.LogFile,
		AltScreen:          c.AltScreen,
		MarkdownStyle:      c.MarkdownStyle,
		StubAddr:           c.StubAddr,
		StubStyle:          c.StubStyle,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode config")
	}
	return string(buf), nil
}
