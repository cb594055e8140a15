package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default returns the configuration the service boots with when a
// setting is absent from every source.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Address = "0.0.0.0"
	cfg.Server.Port = 8787
	cfg.Server.MaxBody = SizeBytes(2 << 20)
	cfg.Server.Beacon.Engine = "fasthttp"
	cfg.DB.Path = "./data"
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Features.MassMentionsEnabled = true
	cfg.Features.GenerateEmbeds = true
	cfg.Limits.MessageLength = 2000
	cfg.Limits.MessageReplies = 5
	cfg.Limits.MessageAttachments = 5
	cfg.Limits.MessageEmbeds = 10
	cfg.Limits.MessageReactions = 20
	cfg.Limits.BulkDeleteMessages = 100
	cfg.Pipeline.IdempotencyWindow = Duration(5 * time.Minute)
	cfg.Pipeline.QueueCapacity = 1024
	cfg.Pipeline.Workers = 2
	cfg.Embeds.Timeout = Duration(5 * time.Second)
	cfg.Security.RateLimit.RPS = 50
	cfg.Security.RateLimit.Burst = 100
	cfg.Retention.Cron = "0 2 * * *"
	cfg.Retention.AttachmentGrace = Duration(7 * 24 * time.Hour)
	return cfg
}

// Addr renders the main listen address.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8787
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns
// their values along with a map indicating which were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8787", "HTTP listen address")
	dbPtr := flag.String("db", "./data", "storage path")
	cfgPtr := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// LoadEnvOverrides applies PARLEY_* environment overrides onto cfg and
// reports whether any were present.
func LoadEnvOverrides(cfg *Config) bool {
	used := false
	if v := os.Getenv("PARLEY_ADDR"); v != "" {
		used = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("PARLEY_DB_PATH"); v != "" {
		used = true
		cfg.DB.Path = v
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		used = true
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PARLEY_LOG_FORMAT"); v != "" {
		used = true
		cfg.Logging.Format = v
	}
	if v := os.Getenv("PARLEY_BEACON_ADDR"); v != "" {
		used = true
		cfg.Server.Beacon.Addr = v
	}
	if v := os.Getenv("PARLEY_EMBED_SERVICE"); v != "" {
		used = true
		cfg.Embeds.ServiceURL = v
	}
	if v := os.Getenv("PARLEY_MASS_MENTIONS"); v != "" {
		used = true
		cfg.Features.MassMentionsEnabled = parseBool(v, cfg.Features.MassMentionsEnabled)
	}
	return used
}

func parseBool(v string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// Effective is the resolved configuration plus provenance for the
// startup banner.
type Effective struct {
	Config *Config
	Addr   string
	DBPath string
	// Source names the highest-priority source that set anything:
	// flags, env, config or defaults.
	Source string
}

// LoadEffective resolves configuration in priority order: flags over
// env over file over defaults.
func LoadEffective(cfgPath string, flagAddr, flagDB string, setFlags map[string]bool) (Effective, error) {
	cfg, err := Load(cfgPath)
	source := "config"
	if err != nil {
		cfg = Default()
		source = "defaults"
	}
	if LoadEnvOverrides(cfg) {
		source = "env"
	}
	if setFlags["addr"] {
		source = "flags"
		if h, p, perr := net.SplitHostPort(flagAddr); perr == nil {
			cfg.Server.Address = h
			if pi, aerr := strconv.Atoi(p); aerr == nil {
				cfg.Server.Port = pi
			}
		}
	}
	if setFlags["db"] {
		source = "flags"
		cfg.DB.Path = flagDB
	}
	return Effective{Config: cfg, Addr: cfg.Addr(), DBPath: cfg.DB.Path, Source: source}, nil
}

// ResolveConfigPath decides the config file path using the flag value
// and the PARLEY_CONFIG environment variable when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("PARLEY_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
