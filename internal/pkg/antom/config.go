package antom

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Aadiprofessional/edusmart-server/config"
)

var (
	ErrNoPrivateKey = errors.New("antom private key not configured")
	ErrInvalidKey   = errors.New("invalid rsa key")
)

// Config 网关客户端配置，显式构造后注入
type Config struct {
	ClientID    string
	KeyVersion  string
	PrivateKey  *rsa.PrivateKey
	PublicKey   *rsa.PublicKey // 为空时用 PrivateKey 的公钥部分验签
	BaseURL     string
	BasePath    string
	Timeout     time.Duration
	NotifyURL   string
	NotifyPath  string
	RedirectURL string
}

// NewConfig 从应用配置解析密钥
func NewConfig(cfg *config.AntomConfig) (*Config, error) {
	privPEM := cfg.PrivateKey
	if privPEM == "" && cfg.PrivateKeyPath != "" {
		data, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read antom private key: %w", err)
		}
		privPEM = string(data)
	}
	if privPEM == "" {
		return nil, ErrNoPrivateKey
	}

	priv, err := ParsePrivateKey(privPEM)
	if err != nil {
		return nil, err
	}

	var pub *rsa.PublicKey
	if cfg.PublicKey != "" {
		pub, err = ParsePublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	keyVersion := cfg.KeyVersion
	if keyVersion == "" {
		keyVersion = "1"
	}

	return &Config{
		ClientID:    cfg.ClientID,
		KeyVersion:  keyVersion,
		PrivateKey:  priv,
		PublicKey:   pub,
		BaseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		BasePath:    cfg.BasePath(),
		Timeout:     timeout,
		NotifyURL:   cfg.NotifyURL,
		NotifyPath:  cfg.NotifyPath,
		RedirectURL: cfg.RedirectURL,
	}, nil
}

// ParsePrivateKey 支持 PKCS#8 / PKCS#1，也接受不带 PEM 头的 base64
func ParsePrivateKey(s string) (*rsa.PrivateKey, error) {
	der, err := decodePEM(s, "PRIVATE KEY")
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an rsa private key", ErrInvalidKey)
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// ParsePublicKey 支持 PKIX / PKCS#1
func ParsePublicKey(s string) (*rsa.PublicKey, error) {
	der, err := decodePEM(s, "PUBLIC KEY")
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an rsa public key", ErrInvalidKey)
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

func decodePEM(s, kind string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "-----BEGIN") {
		s = fmt.Sprintf("-----BEGIN %s-----\n%s\n-----END %s-----", kind, s, kind)
	}
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, fmt.Errorf("%w: no pem block", ErrInvalidKey)
	}
	return block.Bytes, nil
}
