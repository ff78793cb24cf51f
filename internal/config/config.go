package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	AppEnv        string `env:"APP_ENV" envDefault:"production"`
	DatabaseURL   string `env:"DATABASE_URL,required"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`
	OTPTTLMinutes        int    `env:"OTP_TTL_MINUTES" envDefault:"5"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RealtimeRelay bool   `env:"REALTIME_RELAY" envDefault:"false"`

	MediaRoot      string `env:"MEDIA_ROOT" envDefault:"./media"`
	MediaURL       string `env:"MEDIA_URL" envDefault:"/media/"`
	MediaBaseURL   string `env:"MEDIA_BASE_URL"`
	UploadMaxBytes int64  `env:"UPLOAD_MAX_BYTES" envDefault:"10485760"`

	WSSendBuffer          int      `env:"WS_SEND_BUFFER" envDefault:"256"`
	WSInboundBuffer       int      `env:"WS_INBOUND_BUFFER" envDefault:"64"`
	WSMaxMessageBytes     int64    `env:"WS_MAX_MESSAGE_BYTES" envDefault:"65536"`
	WSAllowedOrigins      []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
	ChatPersistTimeoutSec int      `env:"CHAT_PERSIST_TIMEOUT_SECONDS" envDefault:"5"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment indica si el servicio corre en modo desarrollo.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
