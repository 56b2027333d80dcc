package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var Conf *Config

type Config struct {
	Env          string `mapstructure:"env"` // DEV (local; default), TEST, QA, PROD
	Build        string `mapstructure:"build"`
	Debug        bool   `mapstructure:"debug"`
	TestMode     bool   `mapstructure:"testMode"`
	AppName      string `mapstructure:"appName"`
	SecretKey    string `mapstructure:"secretKey"`
	RollbarToken string `mapstructure:"rollbarToken"`

	Server struct {
		Host                          string        `mapstructure:"host"`
		Address                       string        `mapstructure:"address"`
		CookieName                    string        `mapstructure:"cookieName"`
		SessionExpirationDelta        time.Duration `mapstructure:"sessionExpirationDelta"`
		SessionRefreshExpirationDelta time.Duration `mapstructure:"sessionRefreshExpirationDelta"`
		DisableReqLogs                bool          `mapstructure:"disableReqLogs"`
		ShutdownTimeout               time.Duration `mapstructure:"shutdownTimeout"`
	} `mapstructure:"server"`

	Database struct {
		SchoolPath     string `mapstructure:"schoolPath"`
		CredentialPath string `mapstructure:"credentialPath"`
	} `mapstructure:"database"`

	Hashing struct {
		Algorithm        string `mapstructure:"algorithm"`
		SaltLength       int    `mapstructure:"saltLength"`
		PBKDF2Hash       string `mapstructure:"pbkdf2Hash"`
		PBKDF2Iterations int    `mapstructure:"pbkdf2Iterations"`
		ScryptN          int    `mapstructure:"scryptN"`
		ScryptR          int    `mapstructure:"scryptR"`
		ScryptP          int    `mapstructure:"scryptP"`
		Argon2Variant    string `mapstructure:"argon2Variant"`
		Argon2Memory     uint32 `mapstructure:"argon2Memory"`
		Argon2Time       uint32 `mapstructure:"argon2Time"`
		Argon2Threads    uint8  `mapstructure:"argon2Threads"`
	} `mapstructure:"hashing"`

	Password struct {
		MinLength int `mapstructure:"minLength"`
	} `mapstructure:"password"`
}

func init() {
	Conf = NewConfig()
}

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the environment name, eg. `PROD_SERVER_ADDRESS`.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "School Portal")
	v.SetDefault("secretKey", "k2#7vq!x0m@e9r$w4u-o(z^n1c&h8p_jf+6l3y=bd5gs)at")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.cookieName", "session")
	v.SetDefault("server.sessionExpirationDelta", 8*time.Hour)
	v.SetDefault("server.sessionRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("database.schoolPath", "school.db")
	v.SetDefault("database.credentialPath", "credential.db")

	v.SetDefault("hashing.algorithm", "scrypt")
	v.SetDefault("hashing.saltLength", 16)
	v.SetDefault("hashing.pbkdf2Hash", "sha256")
	v.SetDefault("hashing.pbkdf2Iterations", 600000)
	v.SetDefault("hashing.scryptN", 32768)
	v.SetDefault("hashing.scryptR", 8)
	v.SetDefault("hashing.scryptP", 1)
	v.SetDefault("hashing.argon2Variant", "id")
	v.SetDefault("hashing.argon2Memory", 64*1024)
	v.SetDefault("hashing.argon2Time", 3)
	v.SetDefault("hashing.argon2Threads", 2)

	v.SetDefault("password.minLength", 6)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	return conf
}

func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	return "config"
}
