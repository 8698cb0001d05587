package store

import (
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kroslabs/quickyshoppy/internal/secret"
)

const (
	apiKeySetting = "claude_api_key"
	saltSetting   = "secret_salt"
	sealedPrefix  = "sealed:"
)

// ErrSealed is returned when the stored API key is sealed but no passphrase
// was configured to open it.
var ErrSealed = errors.New("api key is sealed: settings passphrase required")

// SettingsStore holds the classification API key. When sealing is enabled the
// key is encrypted at rest.
type SettingsStore struct {
	db  *sql.DB
	box *secret.Box
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// EnableSealing derives the sealing key from passphrase and a per-database
// salt, creating the salt on first use.
func (s *SettingsStore) EnableSealing(passphrase string) error {
	saltHex, err := s.get(saltSetting)
	if err != nil {
		return err
	}

	var salt []byte
	if saltHex == "" {
		salt, err = secret.GenerateSalt()
		if err != nil {
			return err
		}
		if err := s.set(saltSetting, hex.EncodeToString(salt)); err != nil {
			return err
		}
	} else {
		salt, err = hex.DecodeString(saltHex)
		if err != nil {
			return fmt.Errorf("decode salt: %w", err)
		}
	}

	box, err := secret.NewBox(passphrase, salt)
	if err != nil {
		return err
	}
	s.box = box
	return nil
}

// APIKey returns the stored key, or "" when none is configured.
func (s *SettingsStore) APIKey() (string, error) {
	value, err := s.get(apiKeySetting)
	if err != nil || value == "" {
		return "", err
	}

	encoded, sealed := strings.CutPrefix(value, sealedPrefix)
	if !sealed {
		return value, nil
	}
	if s.box == nil {
		return "", ErrSealed
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode api key: %w", err)
	}
	plaintext, err := s.box.Open(data)
	if err != nil {
		return "", fmt.Errorf("open api key: %w", err)
	}
	return string(plaintext), nil
}

func (s *SettingsStore) SaveAPIKey(key string) error {
	value := key
	if s.box != nil {
		sealed, err := s.box.Seal([]byte(key))
		if err != nil {
			return fmt.Errorf("seal api key: %w", err)
		}
		value = sealedPrefix + base64.StdEncoding.EncodeToString(sealed)
	}
	return s.set(apiKeySetting, value)
}

func (s *SettingsStore) ClearAPIKey() error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, apiKeySetting)
	if err != nil {
		return fmt.Errorf("clear api key: %w", err)
	}
	return nil
}

// Sealed reports whether keys are encrypted at rest.
func (s *SettingsStore) Sealed() bool {
	return s.box != nil
}

func (s *SettingsStore) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}
