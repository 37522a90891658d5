// Package config loads ERP credentials from the environment into an
// explicit value that is passed down, never read again through globals.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Credentials is everything needed to talk to the ERP.
type Credentials struct {
	URL      string
	Database string
	Username string
	Password string
}

// Load reads an optional dotenv file, then the process environment. The
// file, when present, overrides the environment so a project-local .env
// wins over stale shell exports.
func Load(envFile string) (Credentials, error) {
	if envFile != "" {
		if err := godotenv.Overload(envFile); err != nil {
			return Credentials{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	c := Credentials{
		URL:      os.Getenv("ODOO_URL"),
		Database: os.Getenv("ODOO_DB"),
		Username: os.Getenv("ODOO_USERNAME"),
		Password: os.Getenv("ODOO_PASSWORD"),
	}
	for name, v := range map[string]string{
		"ODOO_URL":      c.URL,
		"ODOO_DB":       c.Database,
		"ODOO_USERNAME": c.Username,
		"ODOO_PASSWORD": c.Password,
	} {
		if v == "" {
			return Credentials{}, fmt.Errorf("missing required variable %s", name)
		}
	}
	return c, nil
}

// KafkaBootstrap returns the broker list from the environment, empty when
// Kafka sinks are not configured.
func KafkaBootstrap() string {
	return os.Getenv("KAFKA_BOOTSTRAP")
}
