package config

import (
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

type Config struct {
	// Port Settings
	ServerAddr string `json:"serverAddr"` // The address the API server binds to.

	Auth struct {
		AccessTokenSecret  string `json:"accessTokenSecret"`
		RefreshTokenSecret string `json:"refreshTokenSecret"`
		AccessExpiryHours  int    `json:"accessExpiryHours"`  // Default 1 hour.
		RefreshExpiryHours int    `json:"refreshExpiryHours"` // Default 168 hours.
	} `json:"auth"`

	// EncryptionKey is the base64 encoded 32 byte AES key sealing secret
	// values at rest.
	EncryptionKey string `json:"encryptionKey"`

	Postgres struct {
		Host     string `json:"host"`
		Port     string `json:"port"`
		DBName   string `json:"dbname"`
		User     string `json:"user"`
		Password string `json:"password"`
		SSLMode  string `json:"sslmode"`
		TimeZone string `json:"TimeZone"`
	} `json:"postgres"`

	Invite struct {
		DefaultExpiryHours int `json:"defaultExpiryHours"` // Default 720 hours.
		RateLimitRequests  int `json:"rateLimitRequests"`  // Default 20.
		RateLimitWindowSec int `json:"rateLimitWindowSec"` // Default 60.
	} `json:"invite"`

	Cleaner struct {
		// Schedule is a cron expression sweeping expired invites.
		Schedule string `json:"schedule"`
	} `json:"cleaner"`

	CORS struct {
		AllowOrigins []string `json:"allowOrigins"`
	} `json:"cors"`
}

var (
	once   sync.Once
	config *Config
)

func GetConfig() *Config {
	once.Do(func() {
		config = initConfig()
	})
	return config
}

func IsDebugMode() bool {
	return gin.Mode() == gin.DebugMode
}

// initConfig reads the configuration file. In debug mode it prefers the
// local etc/debug-config.yaml (overridable via ENVLOCKER_DEBUG_CONFIG_PATH);
// otherwise it reads the mounted config.yaml.
func initConfig() *Config {
	config := &Config{}
	var configPath string
	if IsDebugMode() {
		if os.Getenv("ENVLOCKER_DEBUG_CONFIG_PATH") != "" {
			configPath = os.Getenv("ENVLOCKER_DEBUG_CONFIG_PATH")
		} else {
			configPath = "./etc/debug-config.yaml"
		}
	} else {
		configPath = "/etc/config/config.yaml"
	}
	klog.Info("config path: ", configPath)

	if err := readConfig(configPath, config); err != nil {
		klog.Error("init config", err)
		panic(err)
	}
	applyDefaults(config)
	applyEnvOverrides(config)
	return config
}

func readConfig(filePath string, config *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

func applyDefaults(config *Config) {
	if config.ServerAddr == "" {
		config.ServerAddr = ":8088"
	}
	if config.Auth.AccessExpiryHours <= 0 {
		config.Auth.AccessExpiryHours = 1
	}
	if config.Auth.RefreshExpiryHours <= 0 {
		config.Auth.RefreshExpiryHours = 168
	}
	if config.Invite.DefaultExpiryHours <= 0 {
		config.Invite.DefaultExpiryHours = 720
	}
	if config.Invite.RateLimitRequests <= 0 {
		config.Invite.RateLimitRequests = 20
	}
	if config.Invite.RateLimitWindowSec <= 0 {
		config.Invite.RateLimitWindowSec = 60
	}
	if config.Cleaner.Schedule == "" {
		config.Cleaner.Schedule = "@hourly"
	}
}

// applyEnvOverrides lets deployment secrets stay out of the config file.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("ENVLOCKER_ENCRYPTION_KEY"); v != "" {
		config.EncryptionKey = v
	}
	if v := os.Getenv("ENVLOCKER_ACCESS_TOKEN_SECRET"); v != "" {
		config.Auth.AccessTokenSecret = v
	}
	if v := os.Getenv("ENVLOCKER_REFRESH_TOKEN_SECRET"); v != "" {
		config.Auth.RefreshTokenSecret = v
	}
	if v := os.Getenv("ENVLOCKER_POSTGRES_PASSWORD"); v != "" {
		config.Postgres.Password = v
	}
}
