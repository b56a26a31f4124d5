package core

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the optional installer configuration lives.
const DefaultConfigPath = "/etc/napcat-installer.yaml"

// Config holds the installer's own settings. Everything has a working
// default; a config file only needs the keys it wants to override.
type Config struct {
	// Version metadata endpoints.
	NapCatMetaURL string `yaml:"napcatMetaURL"`
	QQMetaURL     string `yaml:"qqMetaURL"`

	// QQDownloadBase is the host-app artifact URL base; the full URL is
	// {base}/{hash}/linuxqq_{version}{suffix}.
	QQDownloadBase string `yaml:"qqDownloadBase"`

	// Payload release location and asset name.
	PayloadRepoURL   string `yaml:"payloadRepoURL"`
	PayloadAssetName string `yaml:"payloadAssetName"`

	// MirrorPrefixes are proxy prefixes tried in order after the primary
	// payload URL fails (e.g. "https://ghproxy.net").
	MirrorPrefixes []string `yaml:"mirrorPrefixes"`

	// QQRoot is the host application's installed root.
	QQRoot string `yaml:"qqRoot"`

	// PacketServer, when set, is written into the payload's config (and
	// every discovered per-user copy) on each run.
	PacketServer string `yaml:"packetServer"`

	// UserHomeGlobs are the home-directory patterns scanned for per-user
	// config copies. One level of globbing, never recursive.
	UserHomeGlobs []string `yaml:"userHomeGlobs"`

	// DockerImage is used by the containerized install strategy.
	DockerImage string `yaml:"dockerImage"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		NapCatMetaURL:    "https://nclatest.znin.net/",
		QQMetaURL:        "https://nclatest.znin.net/get_qq_ver",
		QQDownloadBase:   "https://dldir1.qq.com/qqfile/qq/QQNT",
		PayloadRepoURL:   "https://github.com/NapNeko/NapCatQQ",
		PayloadAssetName: "NapCat.Shell.zip",
		MirrorPrefixes: []string{
			"https://ghproxy.net",
			"https://mirror.ghproxy.com",
		},
		QQRoot:        "/opt/QQ",
		UserHomeGlobs: []string{"/root", "/home/*"},
		DockerImage:   "mlikiowa/napcat-docker:latest",
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing file is
// not an error; the defaults are returned as-is.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// AppDir is the host application's resources/app directory, which holds the
// app manifest and the integration hook.
func (c *Config) AppDir() string {
	return filepath.Join(c.QQRoot, "resources", "app")
}

// AppManifestPath is the host application's own manifest (its "main" field
// is rewritten to point at the hook).
func (c *Config) AppManifestPath() string {
	return filepath.Join(c.AppDir(), "package.json")
}

// HookPath is the integration hook written next to the app manifest.
func (c *Config) HookPath() string {
	return filepath.Join(c.AppDir(), "loadNapCat.js")
}

// PayloadDir is the payload's installation directory inside the host tree.
func (c *Config) PayloadDir() string {
	return filepath.Join(c.AppDir(), "napcat")
}

// PayloadManifestPath is the payload's version manifest.
func (c *Config) PayloadManifestPath() string {
	return filepath.Join(c.PayloadDir(), "package.json")
}

// PayloadEntryPath is the payload's entry point referenced by the hook.
func (c *Config) PayloadEntryPath() string {
	return filepath.Join(c.PayloadDir(), "napcat.mjs")
}

// PayloadConfigPath is the payload's own configuration file.
func (c *Config) PayloadConfigPath() string {
	return filepath.Join(c.PayloadDir(), "config", "napcat.json")
}

// PreservedDirName is the payload subdirectory that survives upgrades.
const PreservedDirName = "config"
