package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v2"

	"github.com/donmikel/mediagate/applications/mediagate/domain"
)

const (
	DeviceWebSocket = "websocket"
	DeviceMemory    = "memory"
)

type Server struct {
	API        Api        `yaml:"api"`
	Validation Validation `yaml:"validation"`
	Capture    Capture    `yaml:"capture"`
}

type Api struct {
	HTTPAddr       string   `yaml:"http_addr"`
	MaxUploadBytes ByteSize `yaml:"max_upload_size"`
}

type Validation struct {
	AllowedTypes []string `yaml:"allowed_types"`
	MinSize      ByteSize `yaml:"min_size"`
	MaxSize      ByteSize `yaml:"max_size"`
}

type Capture struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Device         string        `yaml:"device"`
}

// ByteSize is a size in bytes that reads humanized values such as "50KiB" or "50 MB".
type ByteSize int64

func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return fmt.Errorf("can't parse size %q: %w", raw, err)
	}

	*b = ByteSize(n)
	return nil
}

func Default() Server {
	return Server{
		API: Api{
			HTTPAddr:       "0.0.0.0:8002",
			MaxUploadBytes: ByteSize(64 * domain.MiB),
		},
		Validation: Validation{
			AllowedTypes: append([]string(nil), domain.DefaultAllowedTypes...),
			MinSize:      ByteSize(50 * domain.KiB),
			MaxSize:      ByteSize(50 * domain.MiB),
		},
		Capture: Capture{
			RequestTimeout: 30 * time.Second,
			Device:         DeviceWebSocket,
		},
	}
}

// Parse reads the YAML file at path over the defaults. An empty path yields the defaults.
func Parse(path string) (Server, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Server{}, fmt.Errorf("can't read config file: %w", err)
	}

	if err = yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Server{}, fmt.Errorf("can't decode config file: %w", err)
	}

	return cfg, nil
}

func (s Server) Validate() error {
	if s.API.HTTPAddr == "" {
		return errors.New("api.http_addr is empty")
	}
	if len(s.Validation.AllowedTypes) == 0 {
		return errors.New("validation.allowed_types is empty")
	}
	if s.Validation.MinSize < 0 || s.Validation.MaxSize < 0 {
		return errors.New("validation sizes must not be negative")
	}
	if s.Validation.MaxSize == 0 {
		return errors.New("validation.max_size is not set")
	}
	if s.API.MaxUploadBytes > 0 && s.Validation.MaxSize > s.API.MaxUploadBytes {
		return fmt.Errorf("validation.max_size %s exceeds api.max_upload_size %s",
			humanize.IBytes(uint64(s.Validation.MaxSize)), humanize.IBytes(uint64(s.API.MaxUploadBytes)))
	}
	if s.Validation.MinSize > s.Validation.MaxSize {
		return fmt.Errorf("validation.min_size %s exceeds validation.max_size %s",
			humanize.IBytes(uint64(s.Validation.MinSize)), humanize.IBytes(uint64(s.Validation.MaxSize)))
	}
	if s.Capture.RequestTimeout <= 0 {
		return errors.New("capture.request_timeout must be positive")
	}
	switch s.Capture.Device {
	case DeviceWebSocket, DeviceMemory:
	default:
		return fmt.Errorf("unknown capture.device %q", s.Capture.Device)
	}

	return nil
}

func (v Validation) Rule() domain.ValidationRule {
	return domain.NewValidationRule(v.AllowedTypes, int64(v.MinSize), int64(v.MaxSize))
}
