package antom

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

const signatureAlgorithm = "RSA256"

// Signer 请求签名与回调验签
type Signer struct {
	clientID   string
	keyVersion string
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

func NewSigner(cfg *Config) *Signer {
	pub := cfg.PublicKey
	if pub == nil && cfg.PrivateKey != nil {
		pub = &cfg.PrivateKey.PublicKey
	}
	return &Signer{
		clientID:   cfg.ClientID,
		keyVersion: cfg.KeyVersion,
		privateKey: cfg.PrivateKey,
		publicKey:  pub,
	}
}

func (s *Signer) canonical(method, path, requestTime, body string) []byte {
	return []byte(fmt.Sprintf("%s %s\n%s.%s.%s", method, path, s.clientID, requestTime, body))
}

// Sign 返回 Signature 头的值；requestTime 由调用方生成并复用到 Request-Time 头
func (s *Signer) Sign(method, path, body, requestTime string) (string, error) {
	if s.privateKey == nil {
		return "", ErrNoPrivateKey
	}

	digest := sha256.Sum256(s.canonical(method, path, requestTime, body))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}

	encoded := url.QueryEscape(base64.StdEncoding.EncodeToString(sig))
	return fmt.Sprintf("algorithm=%s,keyVersion=%s,signature=%s", signatureAlgorithm, s.keyVersion, encoded), nil
}

// Verify 校验对端签名，任何解析失败都返回 false
func (s *Signer) Verify(method, path, header, requestTime, body string) bool {
	if s.publicKey == nil || header == "" || requestTime == "" {
		return false
	}

	token := signatureToken(header)
	if token == "" {
		return false
	}

	unescaped, err := url.PathUnescape(token)
	if err != nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(unescaped)
	if err != nil {
		return false
	}

	digest := sha256.Sum256(s.canonical(method, path, requestTime, body))
	return rsa.VerifyPKCS1v15(s.publicKey, crypto.SHA256, digest[:], sig) == nil
}

func signatureToken(header string) string {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "signature="); ok {
			return v
		}
	}
	return ""
}
