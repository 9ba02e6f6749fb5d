package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "duelsync.cfg.json"

// ServerConfig holds replication server settings
type ServerConfig struct {
	Addr           string `json:"addr" mapstructure:"addr"`
	RecorderBuffer int    `json:"recorderBuffer" mapstructure:"recorderBuffer"`
}

// ClientConfig holds sync client settings
type ClientConfig struct {
	ServerAddr     string        `json:"serverAddr" mapstructure:"serverAddr"`
	Participant    uint8         `json:"participant" mapstructure:"participant"`
	CallTimeout    time.Duration `json:"callTimeout" mapstructure:"callTimeout"`
	FrameRate      int           `json:"frameRate" mapstructure:"frameRate"`
	ReplayCapacity int           `json:"replayCapacity" mapstructure:"replayCapacity"`
	MaxReconnect   int           `json:"maxReconnect" mapstructure:"maxReconnect"`
	ReconnectDelay time.Duration `json:"reconnectDelay" mapstructure:"reconnectDelay"`
}

// MemoryConfig holds in-memory/JSON recorder settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite recorder settings
type SQLiteConfig struct {
	OutputDir    string        `json:"outputDir" mapstructure:"outputDir"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds Postgres recorder settings
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// WebSocketConfig holds streaming recorder settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// UploadConfig holds replay archive settings
type UploadConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	APIKey  string `json:"apiKey" mapstructure:"apiKey"`
	Tag     string `json:"tag" mapstructure:"tag"`
}

// RecorderConfig selects and configures the session recorder backend
type RecorderConfig struct {
	Enabled       bool            `json:"enabled" mapstructure:"enabled"`
	Type          string          `json:"type" mapstructure:"type"`
	BatchSize     int             `json:"batchSize" mapstructure:"batchSize"`
	FlushInterval time.Duration   `json:"flushInterval" mapstructure:"flushInterval"`
	Memory        MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite        SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	Postgres      PostgresConfig  `json:"postgres" mapstructure:"postgres"`
	WebSocket     WebSocketConfig `json:"websocket" mapstructure:"websocket"`
	Upload        UploadConfig    `json:"upload" mapstructure:"upload"`
}

// InfluxConfig holds client telemetry settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// MonitorConfig holds status file settings
type MonitorConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	File     string        `json:"file" mapstructure:"file"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// LoggingConfig holds log sink settings
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	Dir     string `json:"dir" mapstructure:"dir"`
	Graylog struct {
		Enabled bool   `json:"enabled" mapstructure:"enabled"`
		Address string `json:"address" mapstructure:"address"`
	} `json:"graylog" mapstructure:"graylog"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file
// is returned as an error; defaults stay in effect either way.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./duelsynclogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.recorderBuffer", 4096)

	viper.SetDefault("client.serverAddr", "localhost:8080")
	viper.SetDefault("client.participant", 1)
	viper.SetDefault("client.callTimeout", "20ms")
	viper.SetDefault("client.frameRate", 90)
	viper.SetDefault("client.replayCapacity", 30)
	viper.SetDefault("client.maxReconnect", 10)
	viper.SetDefault("client.reconnectDelay", "1s")

	viper.SetDefault("recorder.enabled", false)
	viper.SetDefault("recorder.type", "memory")
	viper.SetDefault("recorder.batchSize", 500)
	viper.SetDefault("recorder.flushInterval", "1s")
	viper.SetDefault("recorder.memory.outputDir", "./recordings")
	viper.SetDefault("recorder.memory.compressOutput", true)
	viper.SetDefault("recorder.sqlite.outputDir", "./recordings")
	viper.SetDefault("recorder.sqlite.dumpInterval", "3m")
	viper.SetDefault("recorder.postgres.host", "localhost")
	viper.SetDefault("recorder.postgres.port", "5432")
	viper.SetDefault("recorder.postgres.username", "postgres")
	viper.SetDefault("recorder.postgres.password", "postgres")
	viper.SetDefault("recorder.postgres.database", "duelsync")
	viper.SetDefault("recorder.websocket.url", "ws://localhost:5000/ws")
	viper.SetDefault("recorder.websocket.secret", "")
	viper.SetDefault("recorder.upload.enabled", false)
	viper.SetDefault("recorder.upload.url", "http://localhost:5000")
	viper.SetDefault("recorder.upload.apiKey", "")
	viper.SetDefault("recorder.upload.tag", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "duelsync")
	viper.SetDefault("influx.bucket", "frames")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "duelsync")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.file", "status.txt")
	viper.SetDefault("monitor.interval", "5s")
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

// settings mirrors the file layout. viper.Unmarshal walks every known key, so file values
// and defaults merge per leaf rather than per section.
type settings struct {
	Server   ServerConfig   `mapstructure:"server"`
	Client   ClientConfig   `mapstructure:"client"`
	Recorder RecorderConfig `mapstructure:"recorder"`
	Influx   InfluxConfig   `mapstructure:"influx"`
	OTel     OTelConfig     `mapstructure:"otel"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
}

func all() settings {
	var s settings
	if err := viper.Unmarshal(&s); err != nil {
		fmt.Printf("config: ignoring malformed values: %v\n", err)
	}
	return s
}

// GetServerConfig returns the replication server settings.
func GetServerConfig() ServerConfig { return all().Server }

// GetClientConfig returns the sync client settings.
func GetClientConfig() ClientConfig { return all().Client }

// GetRecorderConfig returns the session recorder settings.
func GetRecorderConfig() RecorderConfig { return all().Recorder }

// GetInfluxConfig returns the telemetry settings.
func GetInfluxConfig() InfluxConfig { return all().Influx }

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig { return all().OTel }

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig { return all().Monitor }

// GetLoggingConfig returns log settings assembled from the top-level keys.
func GetLoggingConfig() LoggingConfig {
	var cfg LoggingConfig
	cfg.Level = viper.GetString("logLevel")
	cfg.Dir = viper.GetString("logsDir")
	cfg.Graylog.Enabled = viper.GetBool("graylog.enabled")
	cfg.Graylog.Address = viper.GetString("graylog.address")
	return cfg
}

// Set overrides a config value for the rest of the process, e.g. from a command-line flag.
func Set(key string, value any) {
	viper.Set(key, value)
}
