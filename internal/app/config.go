package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/localroute/localroute/internal/logging"
)

// Config holds the application configuration.
type Config struct {
	// ProjectDir anchors every relative path below. Defaults to the directory
	// of the config file, or the working directory when there is none.
	ProjectDir string `mapstructure:"project_dir"`

	Sites struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"sites"`

	Output struct {
		ProxyConfig    string `mapstructure:"proxy_config"`
		ResolverConfig string `mapstructure:"resolver_config"`
		CertDir        string `mapstructure:"cert_dir"`
	} `mapstructure:"output"`

	Network struct {
		Name           string `mapstructure:"name"`
		Subnet         string `mapstructure:"subnet"`
		Gateway        string `mapstructure:"gateway"`
		ServiceAddress string `mapstructure:"service_address"`
		DNSAddress     string `mapstructure:"dns_address"`
	} `mapstructure:"network"`

	Proxy struct {
		Image   string `mapstructure:"image"`
		CertDir string `mapstructure:"cert_dir"` // inside the container
	} `mapstructure:"proxy"`

	DNS struct {
		Image       string   `mapstructure:"image"`
		BindAddress string   `mapstructure:"bind_address"`
		Upstreams   []string `mapstructure:"upstreams"`
		CacheSize   int      `mapstructure:"cache_size"`
	} `mapstructure:"dns"`

	Certs struct {
		Backend        string        `mapstructure:"backend"` // "auto", "mkcert" or "selfsigned"
		MkcertBinary   string        `mapstructure:"mkcert_binary"`
		ValidityDays   int           `mapstructure:"validity_days"`
		CommandTimeout time.Duration `mapstructure:"command_timeout"`
	} `mapstructure:"certs"`

	Resolver struct {
		Enabled        bool   `mapstructure:"enabled"`
		Path           string `mapstructure:"path"`
		BackupPath     string `mapstructure:"backup_path"`
		Nameserver     string `mapstructure:"nameserver"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
		Sudo           bool   `mapstructure:"sudo"`
		ReleasePort    bool   `mapstructure:"release_port"`
	} `mapstructure:"resolver"`

	Readiness struct {
		Timeout      time.Duration `mapstructure:"timeout"`
		Settle       time.Duration `mapstructure:"settle"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"readiness"`

	Verify struct {
		DNSServer    string        `mapstructure:"dns_server"`
		CheckTimeout time.Duration `mapstructure:"check_timeout"`
		StageTimeout time.Duration `mapstructure:"stage_timeout"`
		Concurrency  int           `mapstructure:"concurrency"`
	} `mapstructure:"verify"`

	Watch struct {
		Debounce time.Duration `mapstructure:"debounce"`
	} `mapstructure:"watch"`

	Logging logging.Config `mapstructure:"logging"`
}

// initConfig loads configuration from file, env and defaults, then resolves
// relative paths against the project directory. sitesPath overrides sites.path.
func initConfig(configPath, sitesPath string) (*viper.Viper, Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, Config{}, err
	}

	v := viper.New()
	if err := loadConfig(v, configPath); err != nil {
		return nil, Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	base, err := projectDir(cfg.ProjectDir, v.ConfigFileUsed())
	if err != nil {
		return nil, Config{}, err
	}
	cfg.ProjectDir = base

	if sitesPath != "" {
		abs, err := filepath.Abs(sitesPath)
		if err != nil {
			return nil, Config{}, fmt.Errorf("failed to resolve sites path: %w", err)
		}
		cfg.Sites.Path = abs
	}

	cfg.resolvePaths()
	return v, cfg, nil
}

// loadDotEnv loads path into the environment when it exists.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// loadConfig loads configuration from file and sets defaults.
func loadConfig(v *viper.Viper, configPath string) error {
	v.SetDefault("project_dir", "")
	v.SetDefault("sites.path", "sites.conf")
	v.SetDefault("output.proxy_config", "docker/nginx/nginx.conf")
	v.SetDefault("output.resolver_config", "docker/dnsmasq/dnsmasq.conf")
	v.SetDefault("output.cert_dir", "ssl")
	v.SetDefault("network.name", "localroute")
	v.SetDefault("network.subnet", "172.20.0.0/16")
	v.SetDefault("network.gateway", "172.20.0.1")
	v.SetDefault("network.service_address", "172.20.0.2")
	v.SetDefault("network.dns_address", "172.20.0.3")
	v.SetDefault("proxy.image", "nginx:alpine")
	v.SetDefault("proxy.cert_dir", "/etc/nginx/ssl")
	v.SetDefault("dns.image", "4km3/dnsmasq:2.90-r3")
	v.SetDefault("dns.bind_address", "127.0.0.1")
	v.SetDefault("dns.upstreams", []string{"1.1.1.1", "8.8.8.8"})
	v.SetDefault("dns.cache_size", 1000)
	v.SetDefault("certs.backend", "auto")
	v.SetDefault("certs.mkcert_binary", "mkcert")
	v.SetDefault("certs.validity_days", 365)
	v.SetDefault("certs.command_timeout", "30s")
	v.SetDefault("resolver.enabled", true)
	v.SetDefault("resolver.path", "/etc/resolv.conf")
	v.SetDefault("resolver.backup_path", "/etc/resolv.conf.backup")
	v.SetDefault("resolver.nameserver", "127.0.0.1")
	v.SetDefault("resolver.timeout_seconds", 1)
	v.SetDefault("resolver.sudo", os.Geteuid() != 0)
	v.SetDefault("resolver.release_port", false)
	v.SetDefault("readiness.timeout", "30s")
	v.SetDefault("readiness.settle", "5s")
	v.SetDefault("readiness.poll_interval", "1s")
	v.SetDefault("verify.dns_server", "127.0.0.1:53")
	v.SetDefault("verify.check_timeout", "5s")
	v.SetDefault("verify.stage_timeout", "30s")
	v.SetDefault("verify.concurrency", 4)
	v.SetDefault("watch.debounce", "500ms")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.enabled", false)
	v.SetDefault("logging.file.path", "")
	v.SetDefault("logging.file.max_size", 10)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age", 28)
	v.SetDefault("logging.file.compress", true)

	ConfigureViper(v, configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("LOCALROUTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return nil
}

// resolvePaths makes every file path absolute. Bind mounts and the
// certificate backends need absolute paths.
func (c *Config) resolvePaths() {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.ProjectDir, p)
	}

	c.Sites.Path = abs(c.Sites.Path)
	c.Output.ProxyConfig = abs(c.Output.ProxyConfig)
	c.Output.ResolverConfig = abs(c.Output.ResolverConfig)
	c.Output.CertDir = abs(c.Output.CertDir)
	c.Logging.File.Path = abs(c.Logging.File.Path)
	if c.Logging.File.Enabled && c.Logging.File.Path == "" {
		c.Logging.File.Path = filepath.Join(c.ProjectDir, "logs", "localroute.log")
	}
}

func projectDir(configured, configFile string) (string, error) {
	dir := configured
	if dir == "" && configFile != "" {
		dir = filepath.Dir(configFile)
	}
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project directory: %w", err)
	}
	return abs, nil
}
