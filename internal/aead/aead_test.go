package aead

import (
	"encoding/base64"
	"testing"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	plaintext := "rally at checkpoint bravo"
	nonce, ciphertext, err := codec.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	got, err := codec.Decrypt(nonce, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if got != plaintext {
		t.Errorf("round trip = %q, want %q", got, plaintext)
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	nonce1, ct1, err := codec.Encrypt("same input")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	nonce2, ct2, err := codec.Encrypt("same input")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if nonce1 == nonce2 {
		t.Error("nonceは呼び出しごとに新しく生成されるべき")
	}
	if ct1 == ct2 {
		t.Error("同一平文でも暗号文は毎回異なるべき")
	}
}

func TestEncrypt_NonceIsTwelveBytes(t *testing.T) {
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	nonceB64, _, err := codec.Encrypt("x")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		t.Fatalf("nonce should be valid base64: %v", err)
	}
	if len(nonce) != nonceSize {
		t.Errorf("nonce length = %d, want %d", len(nonce), nonceSize)
	}
}

func TestDecrypt_RejectsTamperedCiphertext(t *testing.T) {
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	nonce, ciphertext, err := codec.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(ciphertext)
	raw[0] ^= 0xFF
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := codec.Decrypt(nonce, tampered); err == nil {
		t.Error("改ざんされた暗号文の復号はエラーになるべき")
	}
}

func TestDecrypt_RejectsInvalidInputs(t *testing.T) {
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	validNonce := base64.StdEncoding.EncodeToString(make([]byte, nonceSize))

	tests := []struct {
		name       string
		nonce      string
		ciphertext string
	}{
		{"base64でないnonce", "not-base64!!", "aGVsbG8="},
		{"nonceが短い", base64.StdEncoding.EncodeToString(make([]byte, 8)), "aGVsbG8="},
		{"base64でない暗号文", validNonce, "not-base64!!"},
		{"空の暗号文", validNonce, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Decrypt(tt.nonce, tt.ciphertext); err == nil {
				t.Error("不正な入力の復号はエラーになるべき")
			}
		})
	}
}
