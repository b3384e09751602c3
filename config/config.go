package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log        Logger     `mapstructure:"logger"`
	OCR        OCR        `mapstructure:"ocr"`
	Preprocess Preprocess `mapstructure:"preprocess"`
	Output     Output     `mapstructure:"output"`
	Inbox      Inbox      `mapstructure:"inbox"`
	API        API        `mapstructure:"api"`
	History    History    `mapstructure:"history"`
	Cache      Cache      `mapstructure:"cache"`
	Alert      Alert      `mapstructure:"alert"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// OCR selects and configures the text recognition engine.
// Engine is one of "gemini" or "openrouter".
type OCR struct {
	Engine     string     `mapstructure:"engine"`
	Gemini     Gemini     `mapstructure:"gemini"`
	OpenRouter OpenRouter `mapstructure:"openrouter"`
}

type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

type OpenRouter struct {
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	Model               string        `mapstructure:"model"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
}

// Preprocess holds the crop region and pixel adjustments applied before OCR.
// The crop defaults target the metrics strip of a TradingView deep backtesting
// report captured at full HD.
type Preprocess struct {
	CropX          int     `mapstructure:"crop_x"`
	CropY          int     `mapstructure:"crop_y"`
	CropWidth      int     `mapstructure:"crop_width"`
	CropHeight     int     `mapstructure:"crop_height"`
	Brightness     float64 `mapstructure:"brightness"`
	Contrast       float64 `mapstructure:"contrast"`
	Gamma          float64 `mapstructure:"gamma"`
	Grayscale      bool    `mapstructure:"grayscale"`
	Saturation     float64 `mapstructure:"saturation"`
	Sharpen        float64 `mapstructure:"sharpen"`
	Thresholding   bool    `mapstructure:"thresholding"`
	ThresholdValue uint8   `mapstructure:"threshold_value"`
	ProcessedDir   string  `mapstructure:"processed_dir"`
}

type Output struct {
	Dir         string `mapstructure:"dir"`
	RenderChart bool   `mapstructure:"render_chart"`
}

type Inbox struct {
	Dir      string `mapstructure:"dir"`
	Schedule string `mapstructure:"schedule"`
}

type API struct {
	Port int `mapstructure:"port"`
}

type History struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

// Alert posts batch completion and failure notices to a Telegram chat.
type Alert struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigType("yaml")
	viper.SetConfigName("config")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "console")

	viper.SetDefault("ocr.engine", "gemini")
	viper.SetDefault("ocr.gemini.model", "gemini-2.0-flash")
	viper.SetDefault("ocr.gemini.max_request_per_minute", 10)
	viper.SetDefault("ocr.gemini.max_token_per_minute", 1000000)
	viper.SetDefault("ocr.openrouter.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("ocr.openrouter.timeout", 30*time.Second)
	viper.SetDefault("ocr.openrouter.max_request_per_minute", 10)

	// Crop region of the metrics strip in a full HD screenshot.
	viper.SetDefault("preprocess.crop_x", 69)
	viper.SetDefault("preprocess.crop_y", 125)
	viper.SetDefault("preprocess.crop_width", 1402)
	viper.SetDefault("preprocess.crop_height", 235)
	viper.SetDefault("preprocess.brightness", 0.0)
	viper.SetDefault("preprocess.contrast", 0.0)
	viper.SetDefault("preprocess.gamma", 1.0)
	viper.SetDefault("preprocess.grayscale", true)
	viper.SetDefault("preprocess.saturation", 0.0)
	viper.SetDefault("preprocess.sharpen", 1.0)
	viper.SetDefault("preprocess.thresholding", false)
	viper.SetDefault("preprocess.threshold_value", 235)
	viper.SetDefault("preprocess.processed_dir", "images")

	viper.SetDefault("output.dir", "data")
	viper.SetDefault("output.render_chart", false)

	viper.SetDefault("inbox.dir", "raw_image")
	viper.SetDefault("inbox.schedule", "*/5 * * * *")

	viper.SetDefault("api.port", 8080)

	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.path", "extraction_history.db")

	viper.SetDefault("cache.default_expiration", 24*time.Hour)
	viper.SetDefault("cache.cleanup_interval", time.Hour)
}
