// Package vault hands out provider credentials.
package vault

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/repos"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

var ErrNotFound = errors.New("credential not found")

type Credential struct {
	Provider string
	APIKey   string
}

type Vault interface {
	// GetCredential returns ErrNotFound when no usable key exists. incrementUsage bumps the
	// provider's usage counter; the counter is best effort under concurrency.
	GetCredential(ctx context.Context, provider string, incrementUsage bool) (Credential, error)
}

type MasterKey [32]byte

// ParseMasterKey decodes a base64 32-byte key.
func ParseMasterKey(s string) (MasterKey, error) {
	var key MasterKey
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return key, fmt.Errorf("decode master key: %w", err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("master key must be %d bytes, got %d", len(key), len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// Seal encrypts plaintext as nonce||secretbox.
func Seal(key MasterKey, plaintext string) ([]byte, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	k := [32]byte(key)
	return secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &k), nil
}

func Open(key MasterKey, sealed []byte) (string, error) {
	if len(sealed) < 24+secretbox.Overhead {
		return "", errors.New("sealed key too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	k := [32]byte(key)
	out, ok := secretbox.Open(nil, sealed[24:], &nonce, &k)
	if !ok {
		return "", errors.New("sealed key failed authentication")
	}
	return string(out), nil
}

// StoreVault reads sealed keys from the api_key table.
type StoreVault struct {
	keys repos.APIKeyRepo
	key  MasterKey
	log  *logger.Logger
}

func NewStoreVault(keys repos.APIKeyRepo, key MasterKey, baseLog *logger.Logger) *StoreVault {
	return &StoreVault{keys: keys, key: key, log: baseLog.With("component", "StoreVault")}
}

func (v *StoreVault) GetCredential(ctx context.Context, provider string, incrementUsage bool) (Credential, error) {
	provider = normalize(provider)
	row, err := v.keys.GetActiveByProvider(ctx, nil, provider)
	if err != nil {
		return Credential{}, fmt.Errorf("load key for %s: %w", provider, err)
	}
	if row == nil {
		return Credential{}, ErrNotFound
	}
	plain, err := Open(v.key, row.Ciphertext)
	if err != nil {
		return Credential{}, fmt.Errorf("open key for %s: %w", provider, err)
	}
	if incrementUsage {
		if err := v.keys.IncrementUsage(ctx, nil, provider); err != nil {
			v.log.Warn("usage counter update failed", "provider", provider, "error", err)
		}
	}
	return Credential{Provider: provider, APIKey: plain}, nil
}

// Store seals and upserts a provider key.
func (v *StoreVault) Store(ctx context.Context, provider, apiKey string) error {
	sealed, err := Seal(v.key, apiKey)
	if err != nil {
		return err
	}
	return v.keys.Upsert(ctx, nil, &types.APIKey{
		Provider:   normalize(provider),
		Ciphertext: sealed,
		Active:     true,
	})
}

// EnvVault reads <PROVIDER>_API_KEY, e.g. OPENROUTER_API_KEY.
type EnvVault struct {
	lookup func(string) (string, bool)
}

func NewEnvVault() *EnvVault { return &EnvVault{lookup: os.LookupEnv} }

func (v *EnvVault) GetCredential(_ context.Context, provider string, _ bool) (Credential, error) {
	provider = normalize(provider)
	val, ok := v.lookup(EnvName(provider))
	if !ok || strings.TrimSpace(val) == "" {
		return Credential{}, ErrNotFound
	}
	return Credential{Provider: provider, APIKey: strings.TrimSpace(val)}, nil
}

func EnvName(provider string) string {
	r := strings.NewReplacer("-", "_", ".", "_", " ", "_")
	return strings.ToUpper(r.Replace(normalize(provider))) + "_API_KEY"
}

// Chain returns the first vault that has the credential.
type Chain []Vault

func (c Chain) GetCredential(ctx context.Context, provider string, incrementUsage bool) (Credential, error) {
	for _, v := range c {
		cred, err := v.GetCredential(ctx, provider, incrementUsage)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return cred, err
	}
	return Credential{}, ErrNotFound
}

// Static serves fixed keys; used by tests and the CLI's --api-key flag.
type Static map[string]string

func (s Static) GetCredential(_ context.Context, provider string, _ bool) (Credential, error) {
	provider = normalize(provider)
	key, ok := s[provider]
	if !ok || key == "" {
		return Credential{}, ErrNotFound
	}
	return Credential{Provider: provider, APIKey: key}, nil
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
