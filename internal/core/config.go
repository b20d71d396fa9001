package core

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFFmpegArguments는 ffmpeg extra_args가 비어있을 때 사용되는 기본값
const DefaultFFmpegArguments = "-pred 1"

// Config는 전체 애플리케이션 설정을 담는 구조체
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Canary  CanaryConfig  `yaml:"canary"`
	FFmpeg  FFmpegConfig  `yaml:"ffmpeg"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	HTTPPort   int  `yaml:"http_port"`
	Production bool `yaml:"production"`
}

// CanaryConfig는 벤더 클라우드 API 접속 설정
type CanaryConfig struct {
	APIURL          string `yaml:"api_url"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	PollIntervalSec int    `yaml:"poll_interval"`   // 스냅샷 갱신 주기 (초)
	RefreshTimeout  int    `yaml:"refresh_timeout"` // 갱신 1회 타임아웃 (초)
}

// FFmpegConfig holds the transcoder settings. ExtraArgs is a deprecated
// free-text option kept for existing installs; it defaults to
// DefaultFFmpegArguments when unset.
type FFmpegConfig struct {
	Binary    string `yaml:"binary"`
	ExtraArgs string `yaml:"extra_args"`
}

// MQTTConfig는 MQTT 퍼블리셔 설정. BrokerURL이 비어있으면 비활성화됩니다.
type MQTTConfig struct {
	BrokerURL   string `yaml:"broker_url"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// LoadConfig는 YAML 파일에서 설정을 로드합니다
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// applyDefaults는 생략된 설정값에 기본값을 채웁니다
func (c *Config) applyDefaults() {
	if c.Canary.PollIntervalSec == 0 {
		c.Canary.PollIntervalSec = 30
	}
	if c.Canary.RefreshTimeout == 0 {
		c.Canary.RefreshTimeout = 15
	}
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = "ffmpeg"
	}
	if c.FFmpeg.ExtraArgs == "" {
		c.FFmpeg.ExtraArgs = DefaultFFmpegArguments
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "canary-bridge"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "canary"
	}
}

// Validate는 설정값의 유효성을 검증합니다
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.Server.HTTPPort)
	}

	if c.Canary.APIURL == "" {
		return fmt.Errorf("canary api_url is required")
	}

	if c.Canary.Username == "" || c.Canary.Password == "" {
		return fmt.Errorf("canary credentials are required")
	}

	if c.Canary.PollIntervalSec < 5 {
		return fmt.Errorf("poll_interval must be at least 5 seconds")
	}

	return nil
}

// PollInterval은 스냅샷 갱신 주기를 Duration으로 반환합니다
func (c *CanaryConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// RefreshTimeoutDuration은 갱신 1회 타임아웃을 Duration으로 반환합니다
func (c *CanaryConfig) RefreshTimeoutDuration() time.Duration {
	return time.Duration(c.RefreshTimeout) * time.Second
}
