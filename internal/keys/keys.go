package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const keyBits = 2048

// ErrGeneration wraps RSA key generation failures. Fatal at startup; on a
// scheduled rotation the previous key simply stays in force.
var ErrGeneration = errors.New("signing key generation failed")

// SigningKey is an RSA key pair plus its JWKS key id. Values are immutable:
// rotation replaces the whole key, it never edits fields of a live one.
type SigningKey struct {
	ID      string
	Private *rsa.PrivateKey
}

func (k *SigningKey) Public() *rsa.PublicKey { return &k.Private.PublicKey }

type Config struct {
	// PrivateKey, when set, is the pre-provisioned pair to activate at
	// startup instead of generating one. It still gets a fresh key id.
	PrivateKey *rsa.PrivateKey
}

// Store owns the process-wide active signing key. The active key is
// read-many/write-rare shared state; readers and the rotation writer
// synchronize on a single atomic pointer, nothing else.
type Store struct {
	active atomic.Pointer[SigningKey]
	log    *zap.Logger
}

func NewStore(cfg Config, log *zap.Logger) (*Store, error) {
	s := &Store{log: log}
	if cfg.PrivateKey != nil {
		k := &SigningKey{ID: uuid.NewString(), Private: cfg.PrivateKey}
		s.active.Store(k)
		log.Info("using configured signing key", zap.String("kid", k.ID))
		return s, nil
	}
	log.Warn("no signing key configured, generating one")
	if err := s.Rotate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Active never returns nil once NewStore has succeeded.
func (s *Store) Active() *SigningKey { return s.active.Load() }

// Rotate generates a fresh pair under a new key id and swaps it in. On
// generation failure the previously active key remains in force.
func (s *Store) Rotate() error {
	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		s.log.Error("rsa key generation failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	k := &SigningKey{ID: uuid.NewString(), Private: priv}
	s.active.Store(k)
	s.log.Info("signing key rotated", zap.String("kid", k.ID))
	return nil
}
