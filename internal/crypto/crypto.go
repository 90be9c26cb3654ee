// Package crypto derives an AES-256-GCM key from a passphrase via
// Argon2id and seals/opens chunk frames with it. Adapted near-verbatim
// from the teacher's internal/crypto.Encryptor, which encrypted whole
// snapshot payloads; here it seals individual .cacnk frames so an
// EncryptedStore can wrap any other ChunkStore transparently.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/argon2"

	"github.com/casyncd/casyncd/internal/cdcerr"
)

const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32 // 256 bits for AES-256

	saltSize  = 32
	nonceSize = 12
)

// Encryptor seals and opens byte slices with AES-256-GCM under a key
// derived from a passphrase and salt.
type Encryptor struct {
	salt   []byte
	cipher cipher.AEAD
}

// NewEncryptor derives a key from passphrase and salt (generating a
// fresh random salt if none is supplied) and builds the AES-GCM cipher.
func NewEncryptor(passphrase string, salt []byte) (*Encryptor, error) {
	const op = "crypto.NewEncryptor"
	if len(salt) == 0 {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, cdcerr.New(cdcerr.IoError, op, err)
		}
	}

	key := argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, cdcerr.New(cdcerr.ConfigError, op, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, cdcerr.New(cdcerr.ConfigError, op, err)
	}

	return &Encryptor{salt: salt, cipher: gcm}, nil
}

// Salt returns the salt used for key derivation, to be persisted
// alongside the ciphertext (it is not secret).
func (e *Encryptor) Salt() []byte { return e.salt }

// Seal encrypts plaintext, returning ciphertext with the nonce prepended.
func (e *Encryptor) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, cdcerr.New(cdcerr.IoError, "crypto.Encryptor.Seal", err)
	}
	return e.cipher.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts ciphertext produced by Seal.
func (e *Encryptor) Open(ciphertext []byte) ([]byte, error) {
	const op = "crypto.Encryptor.Open"
	if len(ciphertext) < nonceSize {
		return nil, cdcerr.New(cdcerr.DecompressionFailed, op, io.ErrUnexpectedEOF)
	}
	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.cipher.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, cdcerr.New(cdcerr.DecompressionFailed, op, err)
	}
	return plaintext, nil
}

// GenerateSalt returns a fresh random salt of the size NewEncryptor
// expects.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// HashPassword derives a verifiable fingerprint of passphrase+salt
// without exposing the AES key itself, so a caller can confirm the right
// passphrase was supplied before attempting to decrypt real data.
func HashPassword(passphrase string, salt []byte) string {
	key := argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	hash := sha256.Sum256(key)
	return hex.EncodeToString(hash[:])
}

// Header describes an encrypted store's cipher, key derivation, salt and
// passphrase fingerprint, from which a passphrase can be verified and the
// salt recovered. Nothing in this module writes it to disk; the CLI
// persists only the raw salt.
type Header struct {
	Version      int    `yaml:"version"`
	Algorithm    string `yaml:"algorithm"`
	KDF          string `yaml:"kdf"`
	Salt         string `yaml:"salt"`
	PasswordHash string `yaml:"password_hash"`
}

// NewHeader builds a Header describing salt and passphrase.
func NewHeader(salt []byte, passphrase string) Header {
	return Header{
		Version:      1,
		Algorithm:    "aes-256-gcm",
		KDF:          "argon2id",
		Salt:         hex.EncodeToString(salt),
		PasswordHash: HashPassword(passphrase, salt),
	}
}

// VerifyPassword reports whether passphrase matches h's recorded hash.
func (h Header) VerifyPassword(passphrase string) bool {
	salt, err := hex.DecodeString(h.Salt)
	if err != nil {
		return false
	}
	return HashPassword(passphrase, salt) == h.PasswordHash
}
