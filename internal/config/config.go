// Package config は環境変数（と任意の設定ファイル）から設定を読み込む
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigurationError は必須設定の欠落や不正な値
// 起動時に致命的なエラーとして扱う
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// ClientConfig はlovebookクライアントの設定
type ClientConfig struct {
	StoreURL       string
	StoreKey       string
	Addr           string
	LoadingDelay   time.Duration
	RequestTimeout time.Duration
	LogLevel       string
}

// StoreConfig はリファレンス用ストアサーバーの設定
type StoreConfig struct {
	Port        string
	StorageType string
	DatabaseURL string
	SQLitePath  string
	APIKey      string
	LogLevel    string
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()

	// LOVEBOOK_CONFIG があればその設定ファイルも読む（環境変数が優先）
	if path := v.GetString("LOVEBOOK_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &ConfigurationError{Key: "LOVEBOOK_CONFIG", Reason: err.Error()}
		}
	}
	return v, nil
}

func bind(v *viper.Viper, key string, envs ...string) {
	// BindEnvは引数が揃っていればエラーを返さない
	_ = v.BindEnv(append([]string{key}, envs...)...)
}

// LoadClient はクライアントの設定を読み込む
func LoadClient() (*ClientConfig, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	bind(v, "store.url", "LOVEBOOK_STORE_URL", "SUPABASE_URL")
	bind(v, "store.key", "LOVEBOOK_STORE_KEY", "SUPABASE_KEY")
	bind(v, "addr", "LOVEBOOK_ADDR")
	bind(v, "loading_delay", "LOVEBOOK_LOADING_DELAY")
	bind(v, "request_timeout", "LOVEBOOK_REQUEST_TIMEOUT")
	bind(v, "log_level", "LOVEBOOK_LOG_LEVEL")

	v.SetDefault("addr", ":8080")
	v.SetDefault("loading_delay", "2500ms")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("log_level", "info")

	cfg := &ClientConfig{
		StoreURL: strings.TrimSpace(v.GetString("store.url")),
		StoreKey: strings.TrimSpace(v.GetString("store.key")),
		Addr:     v.GetString("addr"),
		LogLevel: v.GetString("log_level"),
	}

	if cfg.StoreURL == "" {
		return nil, &ConfigurationError{Key: "store.url", Reason: "LOVEBOOK_STORE_URL or SUPABASE_URL is required"}
	}
	u, err := url.Parse(cfg.StoreURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &ConfigurationError{Key: "store.url", Reason: fmt.Sprintf("%q is not an http(s) URL", cfg.StoreURL)}
	}
	if cfg.StoreKey == "" {
		return nil, &ConfigurationError{Key: "store.key", Reason: "LOVEBOOK_STORE_KEY or SUPABASE_KEY is required"}
	}

	if cfg.LoadingDelay, err = duration(v, "loading_delay"); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = duration(v, "request_timeout"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return 0, &ConfigurationError{Key: key, Reason: fmt.Sprintf("%q is not a positive duration", v.GetString(key))}
	}
	return d, nil
}

// LoadStore はストアサーバーの設定を読み込む
func LoadStore() (*StoreConfig, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	bind(v, "port", "PORT")
	bind(v, "storage_type", "STORAGE_TYPE")
	bind(v, "database_url", "DATABASE_URL")
	bind(v, "db.host", "DB_HOST")
	bind(v, "db.port", "DB_PORT")
	bind(v, "db.username", "DB_USERNAME")
	bind(v, "db.password", "DB_PASSWORD")
	bind(v, "db.name", "DB_NAME")
	bind(v, "sqlite_path", "SQLITE_PATH")
	bind(v, "api_key", "STORE_KEY", "SUPABASE_KEY")
	bind(v, "log_level", "LOVEBOOK_LOG_LEVEL")

	v.SetDefault("port", "8080")
	v.SetDefault("storage_type", "memory")
	v.SetDefault("db.port", "5432")
	v.SetDefault("sqlite_path", "lovebook.db")
	v.SetDefault("log_level", "info")

	cfg := &StoreConfig{
		Port:        v.GetString("port"),
		StorageType: strings.ToLower(v.GetString("storage_type")),
		SQLitePath:  v.GetString("sqlite_path"),
		APIKey:      v.GetString("api_key"),
		LogLevel:    v.GetString("log_level"),
	}

	if cfg.APIKey == "" {
		return nil, &ConfigurationError{Key: "api_key", Reason: "STORE_KEY is required"}
	}

	switch cfg.StorageType {
	case "memory", "sqlite":
	case "postgres":
		cfg.DatabaseURL = v.GetString("database_url")
		if cfg.DatabaseURL == "" {
			// 個別の環境変数からDATABASE_URLを組み立てる（ECS + Secrets Manager対応）
			host, user, pass, name := v.GetString("db.host"), v.GetString("db.username"), v.GetString("db.password"), v.GetString("db.name")
			if host == "" || user == "" || pass == "" || name == "" {
				return nil, &ConfigurationError{
					Key:    "database_url",
					Reason: "DATABASE_URL or DB_HOST/DB_USERNAME/DB_PASSWORD/DB_NAME is required when STORAGE_TYPE=postgres",
				}
			}
			cfg.DatabaseURL = (&url.URL{
				Scheme:   "postgres",
				User:     url.UserPassword(user, pass),
				Host:     host + ":" + v.GetString("db.port"),
				Path:     "/" + name,
				RawQuery: "sslmode=require",
			}).String()
		}
	default:
		return nil, &ConfigurationError{Key: "storage_type", Reason: fmt.Sprintf("unknown storage type %q", cfg.StorageType)}
	}

	return cfg, nil
}
