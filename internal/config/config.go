package config // package config loads application configuration from environment variables

import (
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "strconv"  // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Database settings are required; the MQTT and
// logging settings have sensible local-development defaults so the server
// can be started against a broker on localhost without any extra setup.
type Config struct {
    Env          string // application environment (e.g. "dev", "prod")
    Port         string // HTTP port to listen on
    DBUser       string // database username
    DBPass       string // database password (optional)
    DBHost       string // database host address
    DBPort       string // database port number
    DBName       string // database name
    MQTTBroker   string // MQTT broker URL, e.g. tcp://localhost:1883
    MQTTClientID string // client id presented to the MQTT broker
    MQTTTopic    string // topic carrying sensor telemetry batches
    LogLevel     string // zap log level: debug, info, warn, error
    LogFormat    string // zap output format: json or console
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:          must("APP_ENV"),      // environment (dev/test/prod)
        Port:         must("APP_PORT"),     // port to bind the HTTP server
        DBUser:       must("DB_USER"),      // database user
        DBPass:       os.Getenv("DB_PASS"), // database password (empty allowed)
        DBHost:       must("DB_HOST"),      // database host
        DBPort:       must("DB_PORT"),      // database port
        DBName:       must("DB_NAME"),      // database name
        MQTTBroker:   getenv("MQTT_BROKER_URL", "tcp://localhost:1883"),
        MQTTClientID: getenv("MQTT_CLIENT_ID", "smart-parking-backend"),
        MQTTTopic:    getenv("MQTT_SENSOR_TOPIC", "parking/sensor"),
        LogLevel:     getenv("LOG_LEVEL", "info"),
        LogFormat:    getenv("LOG_FORMAT", "json"),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// getenv returns the value of an environment variable or a default when the
// variable is unset or empty.
func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

// atoi converts a string to an int, returning zero on failure.  Used by the
// cache and rate-limit config loaders where zero falls back to a default.
func atoi(s string) int {
    i, _ := strconv.Atoi(s)
    return i
}
