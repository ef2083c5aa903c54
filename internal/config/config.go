// Package config implements the file based configuration of the service: the
// transcoder settings that can change between deployments (and at runtime via
// hot-reload) without rebuilding the binary.
package config

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dacirco/dacirco/internal/transcoder"
)

// TranscoderConfig are the settings of the transcode containers and pods.
type TranscoderConfig struct {
	Image       string `yaml:"image" validate:"required"`
	Namespace   string `yaml:"namespace"`
	CPULimit    string `yaml:"cpuLimit"`
	MemoryLimit string `yaml:"memoryLimit"`
	// ControllerHost is the hostname the transcoder uses to reach the
	// OpenStack controller. ControllerIP is optional, when empty it is
	// resolved at runtime.
	ControllerHost string `yaml:"controllerHost"`
	ControllerIP   string `yaml:"controllerIP"`
}

// OpenStackConfig are the credentials the transcoder uses to reach the Swift
// object store, plus the cloud the VM runner drives.
type OpenStackConfig struct {
	// Cloud is the clouds.yaml entry used by the VM runner.
	Cloud              string `yaml:"cloud"`
	ProjectDomainName  string `yaml:"projectDomainName"`
	UserDomainName     string `yaml:"userDomainName"`
	ProjectName        string `yaml:"projectName"`
	Username           string `yaml:"username"`
	// Password can be left empty and provided through the OS_PASSWORD
	// environment variable instead.
	Password           string `yaml:"password"`
	AuthURL            string `yaml:"authURL"`
	IdentityAPIVersion string `yaml:"identityAPIVersion"`
}

// Env maps the credentials to the environment of the transcode process.
func (c OpenStackConfig) Env() transcoder.OpenStackEnv {
	return transcoder.OpenStackEnv{
		ProjectDomainName:  c.ProjectDomainName,
		UserDomainName:     c.UserDomainName,
		ProjectName:        c.ProjectName,
		Username:           c.Username,
		Password:           c.Password,
		AuthURL:            c.AuthURL,
		IdentityAPIVersion: c.IdentityAPIVersion,
	}
}

// VMConfig are the settings of the worker VMs booted by the OpenStack runner.
type VMConfig struct {
	Image             string `yaml:"image"`
	Flavor            string `yaml:"flavor"`
	Network           string `yaml:"network"`
	FloatingIPNetwork string `yaml:"floatingIPNetwork"`
	SSHUser           string `yaml:"sshUser"`
	KeyFile           string `yaml:"keyFile"`
	// TranscoderScript is an optional local transcoder copy uploaded to
	// the VMs before running them.
	TranscoderScript string `yaml:"transcoderScript"`
}

// Config is the DaCirco service configuration.
type Config struct {
	Transcoder TranscoderConfig `yaml:"transcoder" validate:"required"`
	OpenStack  OpenStackConfig  `yaml:"openstack"`
	VM         VMConfig         `yaml:"vm"`
}

func (c *Config) defaults() {
	if c.Transcoder.Namespace == "" {
		c.Transcoder.Namespace = "default"
	}
	if c.Transcoder.CPULimit == "" {
		c.Transcoder.CPULimit = "4"
	}
	if c.Transcoder.MemoryLimit == "" {
		c.Transcoder.MemoryLimit = "2Gi"
	}
	if c.Transcoder.ControllerHost == "" {
		c.Transcoder.ControllerHost = "controller"
	}

	if c.OpenStack.Password == "" {
		c.OpenStack.Password = os.Getenv("OS_PASSWORD")
	}

	if c.VM.SSHUser == "" {
		c.VM.SSHUser = "ubuntu"
	}
	if c.VM.KeyFile == "" {
		c.VM.KeyFile = "dacirco.pem"
	}
}

var configValidate = validator.New()

// Load reads, defaults and validates a configuration.
func Load(r io.Reader) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	err := decoder.Decode(&cfg)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("could not parse configuration: %w", err)
	}

	cfg.defaults()

	err = configValidate.Struct(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Store holds the current configuration and can swap it atomically, so the
// settings can be hot-reloaded while the service runs.
type Store struct {
	path string

	mu  sync.RWMutex
	cfg *Config
}

// NewStore loads the configuration file and returns a store serving it.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	err := s.Reload()
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Get returns the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return *s.cfg
}

// Reload re-reads the configuration file and swaps the served configuration.
// The previous configuration is kept when the new one is invalid.
func (s *Store) Reload() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("could not open configuration file: %w", err)
	}
	defer f.Close()

	cfg, err := Load(f)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	return nil
}
