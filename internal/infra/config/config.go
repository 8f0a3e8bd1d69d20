package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	WhatsApp struct {
		AccessToken   string        `envconfig:"WA_ACCESS_TOKEN"`
		PhoneNumberID string        `envconfig:"WA_PHONE_NUMBER_ID"`
		VerifyToken   string        `envconfig:"WA_VERIFY_TOKEN"`
		BaseURL       string        `envconfig:"WA_BASE_URL" default:"https://graph.facebook.com/v19.0"`
		RetryCount    int           `envconfig:"WA_RETRY_COUNT" default:"3"`
		RetryDelay    time.Duration `envconfig:"WA_RETRY_DELAY" default:"1s"`
		Timeout       time.Duration `envconfig:"WA_TIMEOUT" default:"15s"`
	} `envconfig:""`

	Scrape struct {
		Interval time.Duration `envconfig:"SCRAPE_INTERVAL" default:"15m"`
	} `envconfig:""`

	Queues struct {
		Scrape string `envconfig:"SCRAPE_QUEUE_KEY" default:"scrape_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
