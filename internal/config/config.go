package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// ErrInvalidConfig 表示配置项取值不合法。
var ErrInvalidConfig = errors.New("invalid configuration")

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Meeting   MeetingConfig
	WebSocket WebSocketConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := resolveAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Addr string
}

// resolveAddr 解析服务器监听地址。
func resolveAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string   `env:"ARK_API_KEY"`
	AccessKey   string   `env:"ARK_ACCESS_KEY"`
	SecretKey   string   `env:"ARK_SECRET_KEY"`
	Model       string   `env:"ARK_MODEL"`
	BaseURL     string   `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string   `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature *float64 `env:"ARK_TEMPERATURE"`
	TopP        *float64 `env:"ARK_TOP_P"`
	MaxTokens   *int     `env:"ARK_MAX_TOKENS"`
}

// MeetingConfig 描述会议引擎的参数。
type MeetingConfig struct {
	ModeratorID     int           `env:"MEETING_MODERATOR_ID" envDefault:"0"`
	MaxRounds       int           `env:"MEETING_MAX_ROUNDS" envDefault:"13"`
	MaxHistory      int           `env:"MEETING_MAX_HISTORY" envDefault:"20"`
	RoundWindow     int           `env:"MEETING_ROUND_WINDOW" envDefault:"10"`
	PolicyFile      string        `env:"MEETING_POLICY_FILE"`
	GenerateTimeout time.Duration `env:"MEETING_GENERATE_TIMEOUT" envDefault:"60s"`
}

// WebSocketConfig 描述事件推送通道的配置。
type WebSocketConfig struct {
	CORSOrigins  []string      `env:"WEBSOCKET_CORS_ORIGINS" envDefault:"*" envSeparator:","`
	PingInterval time.Duration `env:"WEBSOCKET_PING_INTERVAL" envDefault:"25s"`
	PingTimeout  time.Duration `env:"WEBSOCKET_PING_TIMEOUT" envDefault:"60s"`
}

// AllowsOrigin 判断来源是否在允许列表中，"*" 表示全部允许。
func (c WebSocketConfig) AllowsOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range c.CORSOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Validate 检查配置项之间的约束。
func (c Config) Validate() error {
	var errs []error
	if c.Meeting.MaxRounds < 2 {
		errs = append(errs, fmt.Errorf("%w: MEETING_MAX_ROUNDS must be at least 2, got %d", ErrInvalidConfig, c.Meeting.MaxRounds))
	}
	if c.Meeting.MaxHistory <= 0 {
		errs = append(errs, fmt.Errorf("%w: MEETING_MAX_HISTORY must be positive, got %d", ErrInvalidConfig, c.Meeting.MaxHistory))
	}
	if c.Meeting.RoundWindow <= 0 {
		errs = append(errs, fmt.Errorf("%w: MEETING_ROUND_WINDOW must be positive, got %d", ErrInvalidConfig, c.Meeting.RoundWindow))
	}
	if c.Meeting.ModeratorID < 0 {
		errs = append(errs, fmt.Errorf("%w: MEETING_MODERATOR_ID must not be negative, got %d", ErrInvalidConfig, c.Meeting.ModeratorID))
	}
	if c.Meeting.GenerateTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: MEETING_GENERATE_TIMEOUT must be positive", ErrInvalidConfig))
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.PingTimeout <= c.WebSocket.PingInterval {
		errs = append(errs, fmt.Errorf("%w: WEBSOCKET_PING_TIMEOUT must exceed a positive WEBSOCKET_PING_INTERVAL", ErrInvalidConfig))
	}
	if c.AI.Temperature != nil && (*c.AI.Temperature < 0 || *c.AI.Temperature > 2) {
		errs = append(errs, fmt.Errorf("%w: ARK_TEMPERATURE must be within [0, 2]", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}
