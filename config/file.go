package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fxsml/gosplit/exchange"
)

// ErrInvalid is returned for a configuration that fails validation.
var ErrInvalid = errors.New("config: invalid")

// Backends.
const (
	BackendMemory  = "memory"
	BackendRedis   = "redis"
	BackendMongoDB = "mongodb"
)

// File is the configuration document of a gosplit engine.
type File struct {
	Splitter Splitter `yaml:"splitter"`
	Strategy Strategy `yaml:"strategy"`
	Store    Store    `yaml:"store"`
	Lock     Lock     `yaml:"lock"`
	Bus      Bus      `yaml:"bus"`
}

// Splitter configures the splitter endpoint.
type Splitter struct {
	Name               string `yaml:"name"`
	Target             string `yaml:"target"`
	PartPattern        string `yaml:"part_pattern"`
	ReportErrors       bool   `yaml:"report_errors"`
	Synchronous        bool   `yaml:"synchronous"`
	ForwardAttachments bool   `yaml:"forward_attachments"`
	ForwardProperties  bool   `yaml:"forward_properties"`
}

// Strategy selects the split strategy. See strategy.FromConfig.
type Strategy struct {
	Kind       string `yaml:"kind"`
	Expression string `yaml:"expression"`
}

// Redis holds Redis connection settings.
type Redis struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// MongoDB holds MongoDB connection settings.
type MongoDB struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// Store selects the correlation store.
type Store struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	Redis   Redis         `yaml:"redis"`
	MongoDB MongoDB       `yaml:"mongodb"`
}

// Lock selects the lock manager.
type Lock struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	Redis   Redis         `yaml:"redis"`
}

// Bus configures the delivery channel.
type Bus struct {
	Concurrency        int           `yaml:"concurrency"`
	BufferSize         int           `yaml:"buffer_size"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	MaxAttempts        int           `yaml:"max_attempts"`
	RetryBackoff       time.Duration `yaml:"retry_backoff"`
	RetryBackoffFactor float64       `yaml:"retry_backoff_factor"`
	LogLevel           string        `yaml:"log_level"`
}

// Default returns a configuration running entirely in memory.
func Default() File {
	return File{
		Splitter: Splitter{Name: "splitter"},
		Strategy: Strategy{Kind: "lines"},
		Store:    Store{Backend: BackendMemory},
		Lock:     Lock{Backend: BackendMemory},
	}
}

// Parse decodes a YAML document over Default. Unknown keys are rejected.
func Parse(data []byte) (File, error) {
	f := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("config: parse: %w", err)
	}
	return f, nil
}

// Load reads the file at path, overlays the environment and validates the
// result. An empty path loads Default with the environment overlay.
func Load(path string) (File, error) {
	return Loader{}.LoadFile(path)
}

// LoadFile is Load with the loader's prefix.
func (l Loader) LoadFile(path string) (File, error) {
	f := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("config: %w", err)
		}
		if f, err = Parse(data); err != nil {
			return File{}, err
		}
	}
	if err := l.Overlay(&f); err != nil {
		return File{}, err
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

type section struct {
	name string
	dst  any
}

func (f *File) sections() []section {
	return []section{
		{"splitter", &f.Splitter},
		{"strategy", &f.Strategy},
		{"store", &f.Store},
		{"lock", &f.Lock},
		{"bus", &f.Bus},
	}
}

// Overlay applies environment variables to every section of f.
func (l Loader) Overlay(f *File) error {
	for _, s := range f.sections() {
		if err := l.Load(s.name, s.dst); err != nil {
			return err
		}
	}
	return nil
}

// FileKeys returns every variable Overlay reads, in section order.
func (l Loader) FileKeys() []string {
	var keys []string
	for _, s := range (&File{}).sections() {
		keys = append(keys, l.Keys(s.name, s.dst)...)
	}
	return keys
}

// Validate checks values that cannot be checked by their consumers alone.
func (f File) Validate() error {
	if f.Splitter.Target == "" {
		return fmt.Errorf("%w: splitter.target is required", ErrInvalid)
	}
	if f.Splitter.PartPattern != "" {
		if _, err := exchange.ParsePattern(f.Splitter.PartPattern); err != nil {
			return fmt.Errorf("%w: splitter.part_pattern: %w", ErrInvalid, err)
		}
	}
	switch f.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if f.Store.Redis.Addr == "" {
			return fmt.Errorf("%w: store.redis.addr is required", ErrInvalid)
		}
	case BackendMongoDB:
		if f.Store.MongoDB.URI == "" {
			return fmt.Errorf("%w: store.mongodb.uri is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: store.backend %q", ErrInvalid, f.Store.Backend)
	}
	switch f.Lock.Backend {
	case BackendMemory:
	case BackendRedis:
		if f.Lock.Redis.Addr == "" {
			return fmt.Errorf("%w: lock.redis.addr is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: lock.backend %q", ErrInvalid, f.Lock.Backend)
	}
	return nil
}
