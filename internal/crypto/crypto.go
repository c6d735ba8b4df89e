package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openmined/syftvault/internal/model"
	"golang.org/x/crypto/hkdf"
)

const (
	KeySize       = 32
	nameCacheSize = 4096
)

var (
	ErrInvalidKey   = errors.New("crypto: account key must be 32 bytes")
	ErrDecrypt      = errors.New("crypto: decryption failed")
	ErrNameTampered = errors.New("crypto: name does not match its hmac")
)

// Crypto encrypts names and document bodies at the replica boundary.
// Everything inside the store and on the wire is ciphertext.
type Crypto interface {
	EncryptName(name string) (model.SecretName, error)
	DecryptName(name model.SecretName) (string, error)
	EncryptDocument(plain []byte) ([]byte, error)
	DecryptDocument(sealed []byte) ([]byte, error)
}

// AccountCrypto derives independent name, hmac and document keys from one account key
type AccountCrypto struct {
	nameAEAD cipher.AEAD
	docAEAD  cipher.AEAD
	hmacKey  []byte
	names    *lru.Cache[string, string]
}

var _ Crypto = (*AccountCrypto)(nil)

func GenerateAccountKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate account key: %w", err)
	}
	return key, nil
}

func NewAccountCrypto(accountKey []byte) (*AccountCrypto, error) {
	if len(accountKey) != KeySize {
		return nil, ErrInvalidKey
	}

	nameKey, err := deriveKey(accountKey, "syftvault/name")
	if err != nil {
		return nil, err
	}
	docKey, err := deriveKey(accountKey, "syftvault/document")
	if err != nil {
		return nil, err
	}
	hmacKey, err := deriveKey(accountKey, "syftvault/name-hmac")
	if err != nil {
		return nil, err
	}

	nameAEAD, err := newAEAD(nameKey)
	if err != nil {
		return nil, err
	}
	docAEAD, err := newAEAD(docKey)
	if err != nil {
		return nil, err
	}

	names, err := lru.New[string, string](nameCacheSize)
	if err != nil {
		return nil, fmt.Errorf("name cache: %w", err)
	}

	return &AccountCrypto{
		nameAEAD: nameAEAD,
		docAEAD:  docAEAD,
		hmacKey:  hmacKey,
		names:    names,
	}, nil
}

func (c *AccountCrypto) EncryptName(name string) (model.SecretName, error) {
	sealed, err := seal(c.nameAEAD, []byte(name))
	if err != nil {
		return model.SecretName{}, err
	}
	secret := model.SecretName{Encrypted: sealed, HMAC: c.nameHMAC(name)}
	c.names.Add(string(sealed), name)
	return secret, nil
}

func (c *AccountCrypto) DecryptName(name model.SecretName) (string, error) {
	if plain, ok := c.names.Get(string(name.Encrypted)); ok {
		return plain, nil
	}

	raw, err := open(c.nameAEAD, name.Encrypted)
	if err != nil {
		return "", err
	}
	plain := string(raw)
	if !hmac.Equal(c.nameHMAC(plain), name.HMAC) {
		return "", ErrNameTampered
	}

	c.names.Add(string(name.Encrypted), plain)
	return plain, nil
}

func (c *AccountCrypto) EncryptDocument(plain []byte) ([]byte, error) {
	return seal(c.docAEAD, compress(plain))
}

func (c *AccountCrypto) DecryptDocument(sealed []byte) ([]byte, error) {
	framed, err := open(c.docAEAD, sealed)
	if err != nil {
		return nil, err
	}
	return decompress(framed)
}

func (c *AccountCrypto) nameHMAC(name string) []byte {
	mac := hmac.New(sha256.New, c.hmacKey)
	mac.Write([]byte(name))
	return mac.Sum(nil)
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// seal returns nonce || ciphertext
func seal(aead cipher.AEAD, plain []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

func open(aead cipher.AEAD, sealed []byte) ([]byte, error) {
	n := aead.NonceSize()
	if len(sealed) < n+aead.Overhead() {
		return nil, ErrDecrypt
	}
	plain, err := aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}
