package config

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server Server `mapstructure:"server"`
	SMx    SMx    `mapstructure:"smx"`
	Sonar  Sonar  `mapstructure:"sonar"`
	Store  Store  `mapstructure:"store"`
	Poller Poller `mapstructure:"poller"`
	Rules  []Rule `mapstructure:"rules"`
}

// Server holds the HTTP server configuration
type Server struct {
	Port            string `mapstructure:"port"`
	AllowedOrigins  string `mapstructure:"allowedOrigins"`
	ShutdownTimeout int    `mapstructure:"shutdownTimeout"`
}

// SMx holds the Calix SMx fault source configuration. AuthHeader is the
// pre-encoded basic auth value the SMx API expects.
type SMx struct {
	URL            string `mapstructure:"url"`
	AuthHeader     string `mapstructure:"authHeader"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
	PageSize       int    `mapstructure:"pageSize"`
}

// Sonar holds the Sonar GraphQL enrichment service configuration
type Sonar struct {
	URL            string `mapstructure:"url"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
}

// Store holds the backing store configuration for the alarm cache and
// alert log
type Store struct {
	Path string `mapstructure:"path"`
}

// Poller holds the poll scheduler configuration
type Poller struct {
	IntervalSeconds   int `mapstructure:"intervalSeconds"`
	LookupConcurrency int `mapstructure:"lookupConcurrency"`
}

// Rule is one incident-detection policy. Thresholds, grouping keys and
// windows are deliberately configuration, not constants.
type Rule struct {
	Name          string `mapstructure:"name"`
	ConditionType string `mapstructure:"conditionType"`
	GroupBy       string `mapstructure:"groupBy"`
	Threshold     int    `mapstructure:"threshold"`
	WindowMinutes int    `mapstructure:"windowMinutes"`
	GlobalMin     int    `mapstructure:"globalMin"`
	Severity      string `mapstructure:"severity"`
}

// Interval returns the poll interval as a duration.
func (p Poller) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// Timeout returns the SMx request timeout as a duration.
func (s SMx) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Timeout returns the per-lookup Sonar timeout as a duration.
func (s Sonar) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// DefaultRules are the incident policies used when the config does not
// override them. They mirror the NOC's operating thresholds.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "fiber_cut", ConditionType: "ont-missing", GroupBy: "pon_port", Threshold: 4, WindowMinutes: 30, Severity: "critical"},
		{Name: "power_outage", ConditionType: "ont-dying-gasp", GroupBy: "region", Threshold: 6, WindowMinutes: 10, Severity: "high"},
		{Name: "ethernet_issue", ConditionType: "ont-eth-down", GroupBy: "region", Threshold: 3, Severity: "medium"},
		{Name: "ont_missing", ConditionType: "ont-missing", GroupBy: "region", Threshold: 5, WindowMinutes: 60, GlobalMin: 10, Severity: "medium"},
	}
}

// LoadConfig loads the application configuration from file or environment variables
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	// Set default values
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.allowedOrigins", "*")
	viper.SetDefault("server.shutdownTimeout", 10)
	viper.SetDefault("smx.timeoutSeconds", 30)
	viper.SetDefault("smx.pageSize", 1000)
	viper.SetDefault("sonar.timeoutSeconds", 15)
	viper.SetDefault("store.path", "fibermon.db")
	viper.SetDefault("poller.intervalSeconds", 90)
	viper.SetDefault("poller.lookupConcurrency", 8)

	// Allow environment variables to override config file. Nested keys
	// map to underscored names, e.g. smx.url -> FIBERMON_SMX_URL.
	viper.SetEnvPrefix("FIBERMON")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound.
	for _, key := range []string{"smx.url", "smx.authHeader", "sonar.url", "sonar.token"} {
		if err := viper.BindEnv(key); err != nil {
			return nil, err
		}
	}

	// If config file is provided, read it
	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			logrus.Warnf("Error reading config file: %v", err)
		}
	}

	// Unmarshal config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if len(config.Rules) == 0 {
		config.Rules = DefaultRules()
	}

	return &config, nil
}
