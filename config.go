package main

import (
	"encoding/json"
	"fmt"
	"os"
)

type Config struct {
	Port          int         `json:"port"`
	Env           string      `json:"env"`
	Pepper        string      `json:"pepper"`
	JWTKey        string      `json:"jwt_key"`
	ReconcileSpec string      `json:"reconcile_spec"`
	Database      MongoConfig `json:"database"`
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

type MongoConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (mc MongoConfig) ConnectionInfo() string {
	if mc.User == "" {
		return fmt.Sprintf("mongodb://%s:%d", mc.Host, mc.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%d", mc.User, mc.Password, mc.Host, mc.Port)
}

func DefaultConfig() Config {
	return Config{
		Port:          1111,
		Env:           "dev",
		Pepper:        "secret-random-string",
		JWTKey:        "secret-jwt-key",
		ReconcileSpec: "@every 10m",
		Database:      DefaultMongoConfig(),
	}
}

func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		Host:     "localhost",
		Port:     27017,
		User:     "",
		Password: "",
		Name:     "audra",
	}
}

// LoadConfig reads configuration from a .config.json file. In production
// the file is required; in development missing config falls back to the
// default dev setup.
func LoadConfig(prod bool) Config {
	f, err := os.Open(".config.json")
	if err != nil {
		if prod {
			panic("a .config.json file is required in production")
		}
		return DefaultConfig()
	}
	defer f.Close()
	var c Config
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		panic(err)
	}
	fmt.Println("Successfully loaded .config.json")
	return c
}
