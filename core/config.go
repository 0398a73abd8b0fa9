package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type (
	DatabaseConfig struct {
		Backend       string // file | sqlite | postgres
		Engine        string
		Host          string
		Port          int
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
		FilePath      string // file backend snapshot
		SQLitePath    string
		MaxRetries    uint64
		RetryBackoff  time.Duration
	}

	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	Config struct {
		Env                 string
		Build               string
		AppName             string
		SecretKey           string
		Debug               bool
		TestMode            bool
		RollbarToken        string
		SendgridApiKey      string
		FrontendBaseURL     string
		NotifyAnnouncements bool
		Database            DatabaseConfig
		Server              ServerConfig

		defaultFromEmail string
	}
)

// Address returns the database "host:port".
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// NewConfig loads the configuration from the environment (and optional .env file).
func NewConfig() *Config {
	return newConfig(loadViper())
}

func newConfig(v *viper.Viper) *Config {
	conf := &Config{
		Env:                 v.GetString("env"),
		Build:               v.GetString("build"),
		AppName:             v.GetString("appName"),
		SecretKey:           v.GetString("secretKey"),
		Debug:               v.GetBool("debug"),
		TestMode:            v.GetBool("testMode"),
		RollbarToken:        v.GetString("rollbarToken"),
		SendgridApiKey:      v.GetString("sendgridApiKey"),
		FrontendBaseURL:     v.GetString("frontendBaseURL"),
		NotifyAnnouncements: v.GetBool("notifyAnnouncements"),
		defaultFromEmail:    v.GetString("defaultFromEmail"),
	}
	conf.Database = DatabaseConfig{
		Backend:       strings.ToLower(v.GetString("database.backend")),
		Engine:        v.GetString("database.engine"),
		Host:          v.GetString("database.host"),
		Port:          v.GetInt("database.port"),
		User:          v.GetString("database.user"),
		Password:      v.GetString("database.password"),
		AdminUser:     v.GetString("database.adminUser"),
		AdminPassword: v.GetString("database.adminPassword"),
		Name:          v.GetString("database.name"),
		DisableTLS:    v.GetBool("database.disableTLS"),
		FilePath:      v.GetString("database.filePath"),
		SQLitePath:    v.GetString("database.sqlitePath"),
		MaxRetries:    uint64(v.GetInt("database.maxRetries")),
		RetryBackoff:  v.GetDuration("database.retryBackoff"),
	}
	conf.Server = ServerConfig{
		Host:               v.GetString("server.host"),
		Address:            v.GetString("server.address"),
		DebugHost:          v.GetString("server.debugHost"),
		ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
		JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
	}
	return conf
}

func loadViper() *viper.Viper {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "Masomo")
	conf.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("defaultFromEmail", "Masomo <noreply@localhost>")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("notifyAnnouncements", false)

	conf.SetDefault("database.backend", BackendFile)
	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.name", "masomo")
	conf.SetDefault("database.disableTLS", false)
	conf.SetDefault("database.filePath", filepath.Join("data", "school.json"))
	conf.SetDefault("database.sqlitePath", filepath.Join("data", "school.db"))
	conf.SetDefault("database.maxRetries", 5)
	conf.SetDefault("database.retryBackoff", 20*time.Millisecond)

	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetDefault("env", env)
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()
	return conf
}
