package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contém as configurações da aplicação
type Config struct {
	Amazon   AmazonConfig
	Database DatabaseConfig
	Pipeline PipelineConfig
	Telegram TelegramConfig
	HTTPAddr string
}

// AmazonConfig agrupa as credenciais e limites do cliente da API de produtos.
type AmazonConfig struct {
	AccessKey         string
	SecretKey         string
	PartnerTag        string
	Host              string
	Region            string
	RequestsPerSecond float64
	RequestTimeout    time.Duration
}

// DatabaseConfig agrupa a configuração do MySQL.
type DatabaseConfig struct {
	DSN string
}

// PipelineConfig agrupa os parâmetros do pipeline de ingestão e refresh.
type PipelineConfig struct {
	DealThreshold   int
	BatchSize       int
	BatchDelay      time.Duration
	MaxQueries      int
	SearchItemCount int
	RefreshInterval time.Duration
	Categories      []string
}

// TelegramConfig agrupa o bot de notificação de novos deals (opcional).
type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// Load carrega as configurações das variáveis de ambiente.
// Credenciais da API ausentes são um erro fatal de configuração.
func Load() (*Config, error) {
	accessKey := os.Getenv("AMAZON_ACCESS_KEY")
	secretKey := os.Getenv("AMAZON_SECRET_KEY")
	partnerTag := os.Getenv("AMAZON_PARTNER_TAG")
	if accessKey == "" || secretKey == "" || partnerTag == "" {
		return nil, fmt.Errorf("AMAZON_ACCESS_KEY, AMAZON_SECRET_KEY e AMAZON_PARTNER_TAG são obrigatórios")
	}

	cfg := &Config{
		Amazon: AmazonConfig{
			AccessKey:         accessKey,
			SecretKey:         secretKey,
			PartnerTag:        partnerTag,
			Host:              getEnv("AMAZON_API_HOST", "webservices.amazon.com.br"),
			Region:            getEnv("AMAZON_API_REGION", "us-east-1"),
			RequestsPerSecond: floatEnv("AMAZON_REQUESTS_PER_SECOND", 1),
			RequestTimeout:    secondsEnv("AMAZON_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DATABASE_DSN", "root:root@tcp(localhost:3306)/deals?parseTime=true"),
		},
		Pipeline: PipelineConfig{
			DealThreshold:   intEnv("DEAL_THRESHOLD_PERCENT", 15),
			BatchSize:       intEnv("REFRESH_BATCH_SIZE", 10),
			BatchDelay:      secondsEnv("BATCH_DELAY_SECONDS", 2),
			MaxQueries:      intEnv("INGEST_MAX_QUERIES", 5),
			SearchItemCount: intEnv("INGEST_SEARCH_ITEM_COUNT", 10),
			RefreshInterval: minutesEnv("REFRESH_INTERVAL_MINUTES", 60),
			Categories:      listEnv("INGEST_CATEGORIES", "Eletrônicos,Casa,Livros"),
		},
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
	}

	// Notificações são opcionais: sem token, o pipeline roda sem avisar
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Telegram.BotToken = token
		if chatIDStr := os.Getenv("TELEGRAM_CHAT_ID"); chatIDStr != "" {
			if chatID, err := strconv.ParseInt(chatIDStr, 10, 64); err == nil {
				cfg.Telegram.ChatID = chatID
			}
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func floatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func secondsEnv(key string, defaultValue int) time.Duration {
	return time.Duration(intEnv(key, defaultValue)) * time.Second
}

func minutesEnv(key string, defaultValue int) time.Duration {
	return time.Duration(intEnv(key, defaultValue)) * time.Minute
}

func listEnv(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
