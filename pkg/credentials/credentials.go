package credentials

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// KeySize is the required length of the encryption key (AES-256).
const KeySize = 32

var (
	ErrNoKey          = errors.New("no encryption key configured")
	ErrInvalidKeySize = errors.New("invalid encryption key length (must be 32 bytes)")
	ErrMalformed      = errors.New("malformed encrypted credentials")
)

// Cipher encrypts an entry's token pair for storage. A Cipher with an empty
// key can still decode entries without credentials.
type Cipher struct {
	key []byte
}

// Configured registers the credentials-encryption-key flag. Without a key
// only entries that track public prices can be stored.
func Configured() *Cipher {
	key := lflag.String("credentials-encryption-key", "", "32 character key for encrypting stored Frank Energie tokens")

	c := &Cipher{}
	lflag.Do(func() {
		if *key != "" && len(*key) != KeySize {
			log.Ctx(context.Background()).Error("credentials-encryption-key must be 32 characters")
			os.Exit(1)
		}
		c.key = []byte(*key)
	})
	return c
}

// New returns a Cipher for key, which must be empty or exactly KeySize bytes.
func New(key string) (*Cipher, error) {
	if key != "" && len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	return &Cipher{key: []byte(key)}, nil
}

func (c *Cipher) gcm() (cipher.AEAD, error) {
	if len(c.key) == 0 {
		return nil, ErrNoKey
	}
	if len(c.key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return gcm, nil
}

// Decrypt decodes a blob produced by Encrypt. An empty blob is an entry
// without credentials and decodes to an empty Authentication.
func (c *Cipher) Decrypt(ctx context.Context, encrypted []byte) (types.Authentication, error) {
	if len(encrypted) == 0 {
		return types.Authentication{}, nil
	}

	gcm, err := c.gcm()
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "cannot decrypt credentials", slog.Any("error", err))
		return types.Authentication{}, fmt.Errorf("cannot decrypt credentials: %w", err)
	}

	if len(encrypted) < gcm.NonceSize() {
		log.Ctx(ctx).ErrorContext(ctx, "malformed encrypted credentials", slog.Int("length", len(encrypted)))
		return types.Authentication{}, ErrMalformed
	}

	nonce, ciphertext := encrypted[:gcm.NonceSize()], encrypted[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decrypt credentials", slog.Any("error", err))
		return types.Authentication{}, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	var auth types.Authentication
	if err := json.Unmarshal(plaintext, &auth); err != nil {
		return types.Authentication{}, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return auth, nil
}

// Encrypt seals auth with a random nonce that is prepended to the result.
func (c *Cipher) Encrypt(ctx context.Context, auth types.Authentication) ([]byte, error) {
	gcm, err := c.gcm()
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "cannot encrypt credentials", slog.Any("error", err))
		return nil, fmt.Errorf("cannot encrypt credentials: %w", err)
	}

	plaintext, err := json.Marshal(auth)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credentials: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to generate nonce", slog.Any("error", err))
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}
