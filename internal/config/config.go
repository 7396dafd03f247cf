package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-yaml/yaml"
)

const envPrefix = "MERCHANTAPI_"

// Service is the location of one collaborator.
type Service struct {
	BaseURL string `yaml:"baseURL"`
	APIKey  string `yaml:"apiKey"`
}

type Services struct {
	Identity Service `yaml:"identity"`
	Merchant Service `yaml:"merchant"`
	Voucher  Service `yaml:"voucher"`
	Product  Service `yaml:"product"`
	Device   Service `yaml:"device"`
	Order    Service `yaml:"order"`
}

type Notify struct {
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	Topic         string `yaml:"topic"`
}

type Config struct {
	Addr          string        `yaml:"addr"`
	GRPCAddr      string        `yaml:"grpcAddr"`
	AuthSecret    string        `yaml:"authSecret"`
	FunctionsKey  string        `yaml:"functionsKey"`
	RoleMatch     string        `yaml:"roleMatch"` // exact, substring
	RateBurst     int           `yaml:"rateBurst"`
	RatePerSec    int           `yaml:"ratePerSec"`
	ClientTimeout time.Duration `yaml:"clientTimeout"`
	JournalDSN    string        `yaml:"journalDSN"`
	TraceEndpoint string        `yaml:"traceEndpoint"`
	Services      Services      `yaml:"services"`
	Notify        Notify        `yaml:"notify"`
}

// Default returns the configuration used when neither file nor env set a key.
func Default() Config {
	return Config{
		Addr:          ":8080",
		RoleMatch:     "exact",
		RateBurst:     50,
		RatePerSec:    25,
		ClientTimeout: 20 * time.Second,
		Notify:        Notify{Topic: "vourity.notifications"},
	}
}

// Load reads the optional YAML file named by MERCHANTAPI_CONFIG and then
// applies MERCHANTAPI_* environment overrides.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv(envPrefix + "CONFIG")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(envPrefix + key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(envPrefix + key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("ADDR", &c.Addr)
	str("GRPC_ADDR", &c.GRPCAddr)
	str("AUTH_SECRET", &c.AuthSecret)
	str("FUNCTIONS_KEY", &c.FunctionsKey)
	str("ROLE_MATCH", &c.RoleMatch)
	str("JOURNAL_DSN", &c.JournalDSN)
	str("TRACE_ENDPOINT", &c.TraceEndpoint)
	if err := num("RATE_BURST", &c.RateBurst); err != nil {
		return err
	}
	if err := num("RATE_PER_SEC", &c.RatePerSec); err != nil {
		return err
	}
	if v := strings.TrimSpace(getenv(envPrefix + "CLIENT_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sCLIENT_TIMEOUT: %w", envPrefix, err)
		}
		c.ClientTimeout = d
	}

	services := map[string]*Service{
		"IDENTITY": &c.Services.Identity,
		"MERCHANT": &c.Services.Merchant,
		"VOUCHER":  &c.Services.Voucher,
		"PRODUCT":  &c.Services.Product,
		"DEVICE":   &c.Services.Device,
		"ORDER":    &c.Services.Order,
	}
	for name, svc := range services {
		str(name+"_URL", &svc.BaseURL)
		str(name+"_API_KEY", &svc.APIKey)
	}

	str("NOTIFY_REDIS_ADDR", &c.Notify.RedisAddr)
	str("NOTIFY_REDIS_PASSWORD", &c.Notify.RedisPassword)
	str("NOTIFY_TOPIC", &c.Notify.Topic)
	return num("NOTIFY_REDIS_DB", &c.Notify.RedisDB)
}

// Validate checks settings that would make every request fail.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AuthSecret) == "" {
		return errors.New("config: auth secret is required (MERCHANTAPI_AUTH_SECRET)")
	}
	switch c.RoleMatch {
	case "exact", "substring":
	default:
		return fmt.Errorf("config: unknown role match mode %q", c.RoleMatch)
	}
	if c.RateBurst <= 0 || c.RatePerSec <= 0 {
		return errors.New("config: rate limits must be positive")
	}
	return nil
}

// Missing lists collaborator services without a base URL.
func (c Config) Missing() []string {
	var out []string
	for name, svc := range map[string]Service{
		"identity": c.Services.Identity,
		"merchant": c.Services.Merchant,
		"voucher":  c.Services.Voucher,
		"product":  c.Services.Product,
		"device":   c.Services.Device,
		"order":    c.Services.Order,
	} {
		if strings.TrimSpace(svc.BaseURL) == "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
