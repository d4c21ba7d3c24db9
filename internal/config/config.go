package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "missionctl.cfg.json"

// LogConfig holds log output settings
type LogConfig struct {
	Level          string `json:"logLevel" mapstructure:"logLevel"`
	Dir            string `json:"logsDir" mapstructure:"logsDir"`
	MaxSizeMB      int    `json:"maxSizeMB" mapstructure:"maxSizeMB"`
	MaxBackups     int    `json:"maxBackups" mapstructure:"maxBackups"`
	GraylogEnabled bool   `json:"graylogEnabled" mapstructure:"graylogEnabled"`
	GraylogAddress string `json:"graylogAddress" mapstructure:"graylogAddress"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// ServerConfig holds the operator HTTP API settings
type ServerConfig struct {
	Enabled        bool     `json:"enabled" mapstructure:"enabled"`
	Address        string   `json:"address" mapstructure:"address"`
	AllowedOrigins []string `json:"allowedOrigins" mapstructure:"allowedOrigins"`
}

// MQTTConfig holds telemetry publisher settings
type MQTTConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	Broker      string `json:"broker" mapstructure:"broker"`
	ClientID    string `json:"clientId" mapstructure:"clientId"`
	TopicPrefix string `json:"topicPrefix" mapstructure:"topicPrefix"`
	QoS         byte   `json:"qos" mapstructure:"qos"`
	Encoding    string `json:"encoding" mapstructure:"encoding"`
	PrivateKey  string `json:"privateKey" mapstructure:"privateKey"`
	Audience    string `json:"audience" mapstructure:"audience"`
}

// SiteConfig anchors the canvas to the launch site
type SiteConfig struct {
	Longitude     float64 `json:"longitude" mapstructure:"longitude"`
	Latitude      float64 `json:"latitude" mapstructure:"latitude"`
	MetersPerUnit float64 `json:"metersPerUnit" mapstructure:"metersPerUnit"`
}

// CatalogConfig selects where routes and profiles come from
type CatalogConfig struct {
	Source string `json:"source" mapstructure:"source"`
	Path   string `json:"path" mapstructure:"path"`
}

// DBConfig holds catalog database settings
type DBConfig struct {
	Driver   string `json:"driver" mapstructure:"driver"`
	Path     string `json:"path" mapstructure:"path"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// MissionConfig holds mission timing settings
type MissionConfig struct {
	TickInterval      time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
	PrepareDelay      time.Duration `json:"prepareDelay" mapstructure:"prepareDelay"`
	LaunchDelay       time.Duration `json:"launchDelay" mapstructure:"launchDelay"`
	ValidationLatency time.Duration `json:"validationLatency" mapstructure:"validationLatency"`
	MaxViews          int           `json:"maxViews" mapstructure:"maxViews"`
}

// MonitorConfig holds status monitor settings
type MonitorConfig struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile bool          `json:"statusFile" mapstructure:"statusFile"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file
// leaves the defaults in place.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./missionlogs")
	viper.SetDefault("log.maxSizeMB", 32)
	viper.SetDefault("log.maxBackups", 3)

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "missionctl")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("server.enabled", true)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.allowedOrigins", []string{"*"})

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientId", "missionctl")
	viper.SetDefault("mqtt.topicPrefix", "missions")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.encoding", "json")
	viper.SetDefault("mqtt.privateKey", "")
	viper.SetDefault("mqtt.audience", "")

	viper.SetDefault("site.longitude", 24.9384)
	viper.SetDefault("site.latitude", 60.1699)
	viper.SetDefault("site.metersPerUnit", 2.0)

	viper.SetDefault("catalog.source", "embedded")
	viper.SetDefault("catalog.path", "")

	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("db.path", "./missionctl.db")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "missionctl")

	viper.SetDefault("mission.tickInterval", "150ms")
	viper.SetDefault("mission.prepareDelay", "2.5s")
	viper.SetDefault("mission.launchDelay", "1s")
	viper.SetDefault("mission.validationLatency", "1.5s")
	viper.SetDefault("mission.maxViews", 16)

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "10s")
	viper.SetDefault("monitor.statusFile", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetLogConfig returns the log output settings.
func GetLogConfig() LogConfig {
	return LogConfig{
		Level:          viper.GetString("logLevel"),
		Dir:            viper.GetString("logsDir"),
		MaxSizeMB:      viper.GetInt("log.maxSizeMB"),
		MaxBackups:     viper.GetInt("log.maxBackups"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetServerConfig returns the HTTP API settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Enabled:        viper.GetBool("server.enabled"),
		Address:        viper.GetString("server.address"),
		AllowedOrigins: viper.GetStringSlice("server.allowedOrigins"),
	}
}

// GetMQTTConfig returns the telemetry publisher settings.
func GetMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Enabled:     viper.GetBool("mqtt.enabled"),
		Broker:      viper.GetString("mqtt.broker"),
		ClientID:    viper.GetString("mqtt.clientId"),
		TopicPrefix: viper.GetString("mqtt.topicPrefix"),
		QoS:         byte(viper.GetUint("mqtt.qos")),
		Encoding:    viper.GetString("mqtt.encoding"),
		PrivateKey:  viper.GetString("mqtt.privateKey"),
		Audience:    viper.GetString("mqtt.audience"),
	}
}

// GetSiteConfig returns the launch site anchoring.
func GetSiteConfig() SiteConfig {
	return SiteConfig{
		Longitude:     viper.GetFloat64("site.longitude"),
		Latitude:      viper.GetFloat64("site.latitude"),
		MetersPerUnit: viper.GetFloat64("site.metersPerUnit"),
	}
}

// GetCatalogConfig returns the catalog source settings.
func GetCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Source: viper.GetString("catalog.source"),
		Path:   viper.GetString("catalog.path"),
	}
}

// GetDBConfig returns the catalog database settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Driver:   viper.GetString("db.driver"),
		Path:     viper.GetString("db.path"),
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetMissionConfig returns mission timing settings.
func GetMissionConfig() MissionConfig {
	return MissionConfig{
		TickInterval:      viper.GetDuration("mission.tickInterval"),
		PrepareDelay:      viper.GetDuration("mission.prepareDelay"),
		LaunchDelay:       viper.GetDuration("mission.launchDelay"),
		ValidationLatency: viper.GetDuration("mission.validationLatency"),
		MaxViews:          viper.GetInt("mission.maxViews"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:    viper.GetBool("monitor.enabled"),
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetBool("monitor.statusFile"),
	}
}
