package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/wthielen/snapcam/protocol"
)

const (
	DefaultPath = "/etc/snapcam/config.json"

	defaultDevice  = "/dev/video0"
	defaultWidth   = 1280
	defaultHeight  = 1024
	defaultBuffers = 4
	defaultTimeout = 10
)

var (
	defaultSocket  = protocol.GetSockAddress()
	defaultPidFile = protocol.GetLockFile()
)

type Config struct {
	Device   string `json:"device" yaml:"device"`
	Width    uint32 `json:"width" yaml:"width"`
	Height   uint32 `json:"height" yaml:"height"`
	Buffers  int    `json:"buffers" yaml:"buffers"`
	Timeout  int    `json:"timeout" yaml:"timeout"`
	Equalize bool   `json:"equalize" yaml:"equalize"`
	Socket   string `json:"socket" yaml:"socket"`
	PidFile  string `json:"pid_file" yaml:"pid_file"`
	// CPU pins the capture thread to a core. Negative disables pinning.
	CPU *int `json:"cpu" yaml:"cpu"`
}

// Load reads DefaultPath, falling back to config.yaml next to it, and fills
// in defaults for anything left unset.
func Load() *Config {
	conf, err := LoadFile(DefaultPath)
	if errors.Is(err, os.ErrNotExist) {
		conf, err = LoadFile(strings.TrimSuffix(DefaultPath, ".json") + ".yaml")
	}
	if err != nil {
		slog.Warn("Failed to load config file", "error", err)
	}
	if conf == nil {
		conf = &Config{}
	}
	conf.setDefaults()
	return conf
}

// LoadFile reads a JSON or YAML file, chosen by extension, and fills in
// defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	conf := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, conf)
	default:
		err = json.Unmarshal(data, conf)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	conf.setDefaults()
	return conf, nil
}

func (conf *Config) setDefaults() {
	if conf.Device == "" {
		conf.Device = defaultDevice
	}
	if conf.Width == 0 {
		conf.Width = defaultWidth
	}
	if conf.Height == 0 {
		conf.Height = defaultHeight
	}
	if conf.Buffers == 0 {
		conf.Buffers = defaultBuffers
	}
	if conf.Timeout == 0 {
		conf.Timeout = defaultTimeout
	}
	if conf.Socket == "" {
		conf.Socket = defaultSocket
	}
	if conf.PidFile == "" {
		conf.PidFile = defaultPidFile
	}
	if conf.CPU == nil {
		none := -1
		conf.CPU = &none
	}
}
