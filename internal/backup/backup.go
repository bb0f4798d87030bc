package backup

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/kelsos/chainbot/internal/logger"
	"github.com/kelsos/chainbot/internal/models"
	"github.com/kelsos/chainbot/internal/store"
)

const accountsEntry = "accounts.json"

func GetDataHome() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return dataHome, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return appData, nil
		}
		return filepath.Join(homeDir, "AppData", "Local"), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support"), nil
	default:
		return filepath.Join(homeDir, ".local", "share"), nil
	}
}

// GetDefaultBackupDir returns the default backup directory, creating it if needed
func GetDefaultBackupDir() (string, error) {
	dataHome, err := GetDataHome()
	if err != nil {
		return "", fmt.Errorf("failed to get data directory: %w", err)
	}

	backupDir := filepath.Join(dataHome, "chainbot", "backups")
	if err := os.MkdirAll(backupDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	return backupDir, nil
}

// CreateBackup writes every stored account to a timestamped zip archive in
// backupDir and returns the archive path. The archive holds private keys.
func CreateBackup(ctx context.Context, lister store.Lister, backupDir string) (string, error) {
	if backupDir == "" {
		var err error
		backupDir, err = GetDefaultBackupDir()
		if err != nil {
			return "", fmt.Errorf("failed to get default backup directory: %w", err)
		}
	}

	accounts, err := lister.Accounts(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list accounts: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	backupFile := filepath.Join(backupDir, fmt.Sprintf("chainbot_accounts_%s.zip", timestamp))

	zipFile, err := os.OpenFile(backupFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	if err := writeAccounts(zipWriter, accounts); err != nil {
		zipWriter.Close()
		os.Remove(backupFile)
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	if err := zipWriter.Close(); err != nil {
		os.Remove(backupFile)
		return "", fmt.Errorf("failed to finish backup: %w", err)
	}

	logger.Info("Backup of %d accounts created: %s", len(accounts), backupFile)
	return backupFile, nil
}

func writeAccounts(zipWriter *zip.Writer, accounts []models.Account) error {
	header := &zip.FileHeader{
		Name:     accountsEntry,
		Method:   zip.Deflate,
		Modified: time.Now(),
	}

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create %s in zip: %w", accountsEntry, err)
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if accounts == nil {
		accounts = []models.Account{}
	}
	return encoder.Encode(accounts)
}

// ReadBackup returns the accounts stored in a backup archive
func ReadBackup(path string) ([]models.Account, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != accountsEntry {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", accountsEntry, err)
		}
		defer rc.Close()

		body, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", accountsEntry, err)
		}

		var accounts []models.Account
		if err := json.Unmarshal(body, &accounts); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", accountsEntry, err)
		}
		return accounts, nil
	}

	return nil, fmt.Errorf("backup %s has no %s", path, accountsEntry)
}

// Restore saves every account of a backup archive that is not already in s.
// Existing records win, so a restore never replaces keys in use.
func Restore(ctx context.Context, s store.Store, path string) (int, error) {
	accounts, err := ReadBackup(path)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, account := range accounts {
		if !account.Valid() {
			logger.Warn("Skipping incomplete account %q in backup", account.Username)
			continue
		}

		_, err := s.Load(ctx, account.Username)
		if err == nil {
			logger.Debug("Account %s already present, skipping", account.Username)
			continue
		}
		if !errors.Is(err, store.ErrAccountNotFound) {
			return restored, fmt.Errorf("failed to check account %s: %w", account.Username, err)
		}

		if err := s.Save(ctx, account); err != nil {
			return restored, fmt.Errorf("failed to restore account %s: %w", account.Username, err)
		}
		restored++
	}

	logger.Info("Restored %d of %d accounts from %s", restored, len(accounts), path)
	return restored, nil
}
