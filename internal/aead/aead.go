// Package aead はクライアント暗号化デモ用のAES-256-GCMコーデックを提供する。
// WebCrypto APIと互換のあるアルゴリズムを使用し、モバイル/ブラウザ側の
// 暗号化実装の疎通確認に使われる。3つの状態ストアからは完全に独立している。
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Algorithm は使用するAEADアルゴリズム名。ヘルスチェック応答で公開する。
const Algorithm = "AES-256-GCM"

// DemoKey はデモ用の共有鍵（32バイト）。
// 本番の鍵交換は対象外で、クライアント側の実装検証のみに使う。
const DemoKey = "omni-core-lite-demo-key-32bytes!"

// nonceSize はAES-GCMのnonceサイズ（12バイト）。
const nonceSize = 12

// Codec はデモ鍵で初期化済みのAEADを保持する。
type Codec struct {
	aead cipher.AEAD
}

// NewCodec はデモ鍵でCodecを生成する。
func NewCodec() (*Codec, error) {
	block, err := aes.NewCipher([]byte(DemoKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt は平文を暗号化し、base64エンコードされたnonceと暗号文を返す。
// nonceは呼び出しごとに暗号論的乱数で生成する。
func (c *Codec) Encrypt(plaintext string) (nonceB64, ciphertextB64 string, err error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt はbase64エンコードされたnonceと暗号文を復号し、平文を返す。
// nonceが12バイトでない場合、または認証タグの検証に失敗した場合はエラーを返す。
func (c *Codec) Decrypt(nonceB64, ciphertextB64 string) (string, error) {
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return "", fmt.Errorf("invalid nonce: %w", err)
	}
	if len(nonce) != nonceSize {
		return "", fmt.Errorf("nonce must be %d bytes, got %d", nonceSize, len(nonce))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext: %w", err)
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	return string(plaintext), nil
}
