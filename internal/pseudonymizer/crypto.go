package pseudonymizer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

// Hash computes the pseudonym for x: lowerhex(SHA256(utf8(x) || salt)).
// Byte order (cleartext then salt, not salt then cleartext) is
// ground-truthed against the original implementation's test vectors.
func Hash(salt []byte, x string) string {
	h := sha256.New()
	h.Write([]byte(x))
	h.Write(salt)
	return hex.EncodeToString(h.Sum(nil))
}

// envelopeSalt is domain-separation material for the one-time AES key
// derivation in EncryptOrigin. It is not a secret; the actual
// confidentiality comes from the RSA-OAEP and AES-GCM keys.
var envelopeSalt = []byte("logprep-go/pseudonymizer/origin-envelope")

// EncryptOrigin hybrid-encrypts x for the origin field of a Pseudonym
// Record: RSA-OAEP under analystPub for the cleartext, AES-GCM-sealed
// under a one-time key, which is itself RSA-OAEP-sealed under
// depseudoPub. See DESIGN.md for the exact envelope byte layout; only
// invertibility by the paired private keys is required, not a fixed wire
// format matched to any particular external receiver.
func EncryptOrigin(analystPub, depseudoPub *rsa.PublicKey, x string) (string, error) {
	aesKey, err := deriveOneTimeKey()
	if err != nil {
		return "", err
	}

	innerCiphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, analystPub, []byte(x), nil)
	if err != nil {
		return "", fmt.Errorf("pseudonymizer: analyst-key encryption: %w", err)
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return "", fmt.Errorf("pseudonymizer: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("pseudonymizer: aes-gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("pseudonymizer: nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, innerCiphertext, nil)

	encryptedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, depseudoPub, aesKey, nil)
	if err != nil {
		return "", fmt.Errorf("pseudonymizer: depseudo-key encryption: %w", err)
	}

	envelope := make([]byte, 0, 2+len(encryptedKey)+len(nonce)+len(ciphertext))
	var lenPrefix [2]byte
	binary.BigEndian.PutUint16(lenPrefix[:], uint16(len(encryptedKey)))
	envelope = append(envelope, lenPrefix[:]...)
	envelope = append(envelope, encryptedKey...)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, ciphertext...)

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// deriveOneTimeKey produces a fresh AES-256 key for one EncryptOrigin call
// via PBKDF2 over random material, rather than using crypto/rand bytes
// directly, so the key derivation step is exercised end to end.
func deriveOneTimeKey() ([]byte, error) {
	material := make([]byte, 32)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("pseudonymizer: key material: %w", err)
	}
	return pbkdf2.Key(material, envelopeSalt, 4096, 32, sha256.New), nil
}

// LoadPublicKey reads an RSA public key from a PEM file (PKIX, "PUBLIC
// KEY" block), as configured via pubkey_analyst / pubkey_depseudo.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pseudonymizer: read public key %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("pseudonymizer: no PEM block in %s", path)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("pseudonymizer: parse public key %s: %w", path, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("pseudonymizer: %s is not an RSA public key", path)
	}
	return rsaPub, nil
}
