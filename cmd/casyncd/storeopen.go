package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/casyncd/casyncd/internal/cdcerr"
	"github.com/casyncd/casyncd/internal/config"
	"github.com/casyncd/casyncd/internal/crypto"
	"github.com/casyncd/casyncd/internal/store"
)

const saltFileName = ".casyncd-salt"

// openStore builds the chunk store to use for a command. When --config
// is set it takes full precedence (store kind, S3 settings, encryption
// all come from the file); otherwise it falls back to the --repo/--store
// root and --encrypt flags, matching the teacher's flag-first CLI style.
func openStore(root string, encrypt bool) (store.ChunkStore, error) {
	if configPath != "" {
		return openStoreFromConfig(configPath)
	}
	return openStoreFromFlags(root, encrypt)
}

func openStoreFromConfig(path string) (store.ChunkStore, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	var base store.ChunkStore
	switch cfg.Store.Kind {
	case "s3":
		base, err = store.NewS3Store(context.Background(), store.S3Config{
			Bucket:       cfg.Store.S3.Bucket,
			Region:       cfg.Store.S3.Region,
			Endpoint:     cfg.Store.S3.Endpoint,
			AccessKey:    cfg.Store.S3.AccessKey,
			SecretKey:    cfg.Store.S3.SecretKey,
			Prefix:       cfg.Store.S3.Prefix,
			MaxBandwidth: cfg.Store.S3.MaxBandwidth,
		})
	default:
		base, err = store.NewLocalStore(cfg.Store.Path)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Encryption.Enabled {
		return base, nil
	}
	saltDir := cfg.Store.Path
	if saltDir == "" {
		saltDir = filepath.Dir(path)
	}
	return wrapEncrypted(base, saltDir)
}

func openStoreFromFlags(root string, encrypt bool) (store.ChunkStore, error) {
	const op = "cmd.openStore"

	var base store.ChunkStore
	if root == "" {
		base = store.NewMemStore()
	} else {
		ls, err := store.NewLocalStore(root)
		if err != nil {
			return nil, err
		}
		base = ls
	}

	if !encrypt {
		return base, nil
	}
	if root == "" {
		return nil, cdcerr.New(cdcerr.ConfigError, op, fmt.Errorf("--encrypt requires --repo or --store"))
	}
	return wrapEncrypted(base, root)
}

func wrapEncrypted(base store.ChunkStore, saltDir string) (store.ChunkStore, error) {
	salt, err := loadOrCreateSalt(saltDir)
	if err != nil {
		return nil, err
	}

	passphrase, err := readPassphrase()
	if err != nil {
		return nil, err
	}

	enc, err := crypto.NewEncryptor(passphrase, salt)
	if err != nil {
		return nil, err
	}
	return store.NewEncryptedStore(base, enc), nil
}

// loadOrCreateSalt keeps one salt per repo root so every casyncd
// invocation against the same store derives the same key from the
// same passphrase.
func loadOrCreateSalt(root string) ([]byte, error) {
	const op = "cmd.loadOrCreateSalt"
	path := filepath.Join(root, saltFileName)

	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, cdcerr.New(cdcerr.IoError, op, err)
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, cdcerr.New(cdcerr.IoError, op, err)
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, cdcerr.New(cdcerr.IoError, op, err)
	}
	return salt, nil
}

// readPassphrase takes it from CASYNCD_PASSPHRASE when set (scripted
// runs), otherwise prompts on the controlling terminal without echo.
func readPassphrase() (string, error) {
	const op = "cmd.readPassphrase"
	if p := os.Getenv("CASYNCD_PASSPHRASE"); p != "" {
		return p, nil
	}

	fmt.Fprint(os.Stderr, "passphrase: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", cdcerr.New(cdcerr.IoError, op, err)
	}
	return string(b), nil
}
