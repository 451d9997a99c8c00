package repo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-git/go-billy/v5"

	"github.com/odvcencio/twig/pkg/object"
)

const configFile = "config.toml"

// Environment variables that override the configured author identity.
const (
	EnvAuthorName  = "TWIG_AUTHOR_NAME"
	EnvAuthorEmail = "TWIG_AUTHOR_EMAIL"
)

// Config stores repository-local settings in .twig/config.toml.
type Config struct {
	User   UserConfig   `toml:"user"`
	Core   CoreConfig   `toml:"core"`
	Merge  MergeConfig  `toml:"merge"`
	Commit CommitConfig `toml:"commit"`
}

type UserConfig struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

type CoreConfig struct {
	DefaultBranch string `toml:"default_branch"`
	// Compression is "zstd" or "none".
	Compression string `toml:"compression"`
}

type MergeConfig struct {
	// Tool is an external merge command line. Empty or "diff3" selects the
	// built-in merger.
	Tool string `toml:"tool,omitempty"`
}

type CommitConfig struct {
	// SigningKey is a path to an SSH private key. Commits are signed when set.
	SigningKey string `toml:"signing_key,omitempty"`
}

// DefaultConfig returns the settings written by Init.
func DefaultConfig() *Config {
	return &Config{
		Core: CoreConfig{
			DefaultBranch: "main",
			Compression:   string(object.CompressionZstd),
		},
	}
}

// ReadConfig reads config.toml from the control directory. A missing file
// yields DefaultConfig; missing keys keep their defaults.
func ReadConfig(fs billy.Filesystem) (*Config, error) {
	cfg := DefaultConfig()
	f, err := fs.Open(configFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("read config: decode: %w", err)
	}
	if cfg.Core.DefaultBranch == "" {
		cfg.Core.DefaultBranch = "main"
	}
	if cfg.Core.Compression == "" {
		cfg.Core.Compression = string(object.CompressionZstd)
	}
	return cfg, nil
}

// WriteConfig atomically writes cfg to config.toml in the control directory.
func WriteConfig(fs billy.Filesystem, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	tmp, err := fs.TempFile("", ".config-tmp-")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := fs.Rename(tmpName, configFile); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

func (c *Config) compression() (object.Compression, error) {
	switch object.Compression(c.Core.Compression) {
	case object.CompressionZstd, "":
		return object.CompressionZstd, nil
	case object.CompressionNone:
		return object.CompressionNone, nil
	default:
		return "", fmt.Errorf("config: unknown core.compression %q", c.Core.Compression)
	}
}

// Author returns the commit author string "Name <email>". Environment
// overrides take precedence over the config file.
func (r *Repo) Author() (string, error) {
	name := strings.TrimSpace(r.getenv(EnvAuthorName))
	if name == "" {
		name = strings.TrimSpace(r.Config.User.Name)
	}
	email := strings.TrimSpace(r.getenv(EnvAuthorEmail))
	if email == "" {
		email = strings.TrimSpace(r.Config.User.Email)
	}
	if name == "" {
		return "", ErrNoAuthor
	}
	if email == "" {
		return name, nil
	}
	return fmt.Sprintf("%s <%s>", name, email), nil
}
