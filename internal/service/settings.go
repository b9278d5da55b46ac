package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkordes/cruise-price-tracker/internal/config"
)

// PasswordMask replaces account passwords in documents sent to the
// dashboard. A saved document that still carries the mask keeps the stored
// password for that username.
const PasswordMask = "********"

// SettingsService reads and writes the tracker file for the settings editor.
type SettingsService struct {
	path   string
	logger *slog.Logger
}

// NewSettingsService edits the file at path.
func NewSettingsService(path string, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{path: path, logger: logger}
}

// Get returns the file with defaults filled in and passwords masked. A
// missing file yields the defaults so a first-time operator can start from
// the editor.
func (s *SettingsService) Get(_ context.Context) (config.TrackerFile, error) {
	f, err := config.LoadTrackerFileLoose(s.path)
	if err != nil {
		return config.TrackerFile{}, fmt.Errorf("service.SettingsService.Get: %w", err)
	}
	return maskPasswords(f), nil
}

// Save validates and writes f, keeping a backup of the previous file.
// Invalid documents return an error wrapping domain.ErrValidation.
func (s *SettingsService) Save(ctx context.Context, f config.TrackerFile) (config.TrackerFile, error) {
	current, err := config.LoadTrackerFileLoose(s.path)
	if err != nil {
		return config.TrackerFile{}, fmt.Errorf("service.SettingsService.Save: %w", err)
	}
	f = restorePasswords(f, current)

	if err := config.SaveTrackerFile(s.path, f); err != nil {
		return config.TrackerFile{}, fmt.Errorf("service.SettingsService.Save: %w", err)
	}
	s.logger.InfoContext(ctx, "tracker config saved", "path", s.path, "accounts", len(f.Accounts))
	return s.Get(ctx)
}

func maskPasswords(f config.TrackerFile) config.TrackerFile {
	accounts := make([]config.AccountEntry, len(f.Accounts))
	for i, a := range f.Accounts {
		if a.Password != "" {
			a.Password = PasswordMask
		}
		accounts[i] = a
	}
	f.Accounts = accounts
	return f
}

func restorePasswords(f, current config.TrackerFile) config.TrackerFile {
	stored := make(map[string]string, len(current.Accounts))
	for _, a := range current.Accounts {
		stored[a.Username] = a.Password
	}
	accounts := make([]config.AccountEntry, len(f.Accounts))
	for i, a := range f.Accounts {
		if a.Password == PasswordMask {
			a.Password = stored[a.Username]
		}
		accounts[i] = a
	}
	f.Accounts = accounts
	return f
}
