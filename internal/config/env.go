package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/kelsos/chainbot/internal/logger"
)

// LoadDotEnv loads environment variables from .env files.
// It tries the current directory first and then the directory of the executable.
// Variables already present in the environment are never overwritten.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found in current directory or error loading it: %v", err)
	} else {
		logger.Info("Loaded .env file from current directory")
	}

	execPath, err := os.Executable()
	if err != nil {
		logger.Debug("Could not determine executable path: %v", err)
		return
	}

	envPath := filepath.Join(filepath.Dir(execPath), ".env")
	if err := godotenv.Load(envPath); err != nil {
		logger.Debug("No .env file found in app directory (%s): %v", filepath.Dir(execPath), err)
	} else {
		logger.Info("Loaded .env file from app directory: %s", filepath.Dir(execPath))
	}
}
