package jwt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ignis-framework/ignis/ignis/igniserr"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

// Role is transported as a pipe-separated "id|identifier|priority" string
// before encryption (spec §4.7).
type Role struct {
	ID         string
	Identifier string
	Priority   int
}

func (r Role) String() string {
	return fmt.Sprintf("%s|%s|%d", r.ID, r.Identifier, r.Priority)
}

// ParseRole parses the pipe-separated transport form back into a Role.
func ParseRole(s string) (Role, error) {
	parts := strings.SplitN(s, "|", 3)
	if len(parts) != 3 {
		return Role{}, igniserr.Newf(igniserr.KindUnauthenticated, "malformed role %q", s)
	}
	priority, err := strconv.Atoi(parts[2])
	if err != nil {
		return Role{}, igniserr.Wrap(igniserr.KindUnauthenticated, err, "malformed role priority")
	}
	return Role{ID: parts[0], Identifier: parts[1], Priority: priority}, nil
}

// deriveKey turns the configured secret into a 32-byte AES-256 key. PBKDF2
// (rather than using the raw configured secret directly) absorbs secrets of
// arbitrary length/entropy into a fixed-size key, the same role it plays in
// any password-based-encryption setup.
func deriveKey(secret string) []byte {
	return pbkdf2.Key([]byte(secret), []byte("ignis-claim-encryption"), 4096, 32, sha3.New256)
}

// encryptField AES-256-CBC-encrypts plaintext under key, PKCS#7-padding it
// first and prefixing the random IV to the ciphertext before base64
// encoding — standard CBC usage; there is no third-party Go library that
// supersedes crypto/aes+crypto/cipher for block-cipher primitives, so this
// part of the claim-encryption pipeline is stdlib by necessity, same as the
// rest of the Go ecosystem.
func encryptField(key []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad([]byte(plaintext), block.BlockSize())

	iv := make([]byte, block.BlockSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(append(iv, ciphertext...)), nil
}

func decryptField(key []byte, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	bs := block.BlockSize()
	if len(raw) < bs || len(raw)%bs != 0 {
		return "", igniserr.New(igniserr.KindUnauthenticated, "malformed encrypted claim")
	}
	iv, ciphertext := raw[:bs], raw[bs:]

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, bs)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, igniserr.New(igniserr.KindUnauthenticated, "empty padded claim")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, igniserr.New(igniserr.KindUnauthenticated, "invalid claim padding")
	}
	return data[:len(data)-padLen], nil
}

// encryptClaims encrypts both the key and the value of every non-standard
// claim, skipping entries whose value is nil (spec §4.7: "null and
// undefined claim values are skipped during encryption"). roles, if
// present, is first flattened to its pipe-separated transport strings.
func encryptClaims(secret string, claims map[string]any) (map[string]string, error) {
	key := deriveKey(secret)
	out := make(map[string]string, len(claims))

	for k, v := range claims {
		if v == nil {
			continue
		}

		var plain string
		switch t := v.(type) {
		case []Role:
			parts := make([]string, len(t))
			for i, r := range t {
				parts[i] = r.String()
			}
			plain = strings.Join(parts, ",")
		case string:
			plain = t
		default:
			plain = fmt.Sprintf("%v", t)
		}

		encKey, err := encryptField(key, k)
		if err != nil {
			return nil, err
		}
		encVal, err := encryptField(key, plain)
		if err != nil {
			return nil, err
		}
		out[encKey] = encVal
	}
	return out, nil
}

// decryptClaims reverses encryptClaims, returning plain string values; the
// caller re-parses typed fields (e.g. roles) as needed.
func decryptClaims(secret string, encrypted map[string]string) (map[string]string, error) {
	key := deriveKey(secret)
	out := make(map[string]string, len(encrypted))
	for ek, ev := range encrypted {
		k, err := decryptField(key, ek)
		if err != nil {
			return nil, err
		}
		v, err := decryptField(key, ev)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
