package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// MailPasswordEnv names the variable holding the SMTP password.
const MailPasswordEnv = "MAIL_FROM_PASSWORD"

// ErrMissingPassword is returned when no SMTP password is configured.
var ErrMissingPassword = errors.New(MailPasswordEnv + " is not set")

// LoadEnv loads environment files. ENV_FILE, when set, names the only file
// read. Otherwise .env.local and then .env are read if they exist. Variables
// already present in the environment are never overwritten.
func LoadEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		return nil
	}

	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	return nil
}

// MailPassword returns the SMTP password from the environment.
func MailPassword() (string, error) {
	pw := os.Getenv(MailPasswordEnv)
	if pw == "" {
		return "", ErrMissingPassword
	}
	return pw, nil
}
