package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Configuration chứa thông tin tĩnh cần thiết để chạy ứng dụng.
// Credential của các dịch vụ ngoài (AI provider, CDN, render) đều optional:
// thiếu credential nào thì feature tương ứng degrade, không crash pipeline.
type Configuration struct {
	Address               string `env:"ADDRESS" envDefault:":8080"`                // Địa chỉ server
	JwtSecret             string `env:"JWT_SECRET,required"`                       // Bí mật JWT
	MongoDB_ConnectionURI string `env:"MONGODB_CONNECTION_URI,required"`           // URL kết nối cơ sở dữ liệu
	MongoDB_DBName        string `env:"MONGODB_DBNAME" envDefault:"storia"`        // Tên cơ sở dữ liệu
	CORS_Origins          string `env:"CORS_ORIGINS" envDefault:"*"`               // Các origins được phép (phân cách bởi dấu phẩy, * = tất cả)
	CORS_AllowCredentials bool   `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"` // Cho phép gửi credentials
	RateLimit_Max         int    `env:"RATE_LIMIT_MAX" envDefault:"100"`           // Số request tối đa trong window (0 = disable rate limit)
	RateLimit_Window      int    `env:"RATE_LIMIT_WINDOW" envDefault:"60"`         // Thời gian window (giây)
	RateLimit_Enabled     bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`      // Bật/tắt rate limiting

	// AI Agent Providers (optional)
	LLMBaseURL     string `env:"LLM_BASE_URL"`                     // Base URL của LLM provider (text agents)
	LLMAPIKey      string `env:"LLM_API_KEY"`                      // API key của LLM provider
	TTSBaseURL     string `env:"TTS_BASE_URL"`                     // Base URL của TTS provider (ElevenLabs-compatible)
	TTSAPIKey      string `env:"TTS_API_KEY"`                      // API key của TTS provider
	AgentMaxRetry  int    `env:"AGENT_MAX_RETRY" envDefault:"2"`   // Số lần retry tối đa mỗi lần invoke agent
	AgentBackoffMs int    `env:"AGENT_BACKOFF_MS" envDefault:"500"` // Backoff tuyến tính giữa các retry (ms)

	// Blob store / CDN (optional)
	CDNBaseURL    string `env:"CDN_BASE_URL"`    // Base URL của storage zone (Bunny-compatible)
	CDNAPIKey     string `env:"CDN_API_KEY"`     // AccessKey của storage zone
	CDNPublicBase string `env:"CDN_PUBLIC_BASE"` // Base URL public để build URL trả về cho client

	// Render service (optional)
	RenderBaseURL string `env:"RENDER_BASE_URL"` // Base URL của render service (Shotstack-compatible)
	RenderAPIKey  string `env:"RENDER_API_KEY"`  // API key của render service

	// Upload staging (pre-persistence, in-memory)
	StagingTTLSeconds   int `env:"STAGING_TTL_SECONDS" envDefault:"900"`  // Tuổi tối đa của entry staging (giây)
	StagingSweepSeconds int `env:"STAGING_SWEEP_SECONDS" envDefault:"60"` // Chu kỳ sweep dọn staging (giây)

	// Pipeline definition overrides (optional, yaml)
	PipelinesConfigPath string `env:"PIPELINES_CONFIG_PATH"` // Đường dẫn file pipelines.yaml (rỗng = dùng defaults built-in)
}

// NewConfig đọc dữ liệu cấu hình từ file env (nếu có) rồi parse environment.
// File env là optional: khi deploy bằng systemd/container, env đã được inject sẵn.
func NewConfig() *Configuration {
	envPath := os.Getenv("ENV_FILE")
	if envPath == "" {
		envPath = ".env"
	}

	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			// Dùng fmt.Printf vì logger có thể chưa được init ở đây
			fmt.Printf("Không thể load file env tại %s: %v\n", envPath, err)
			return nil
		}
	}

	cfg := Configuration{}
	if err := env.Parse(&cfg); err != nil {
		fmt.Printf("Lỗi khi parse config: %+v\n", err)
		return nil
	}

	return &cfg
}
