package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hitoshi/squadz/internal/aead"
	"github.com/hitoshi/squadz/internal/model"
)

// CryptoHandler はクライアント暗号化デモ用のHTTPハンドラー。
// 3つの状態ストアからは完全に独立しており、固定のデモ鍵で
// AES-256-GCMの疎通確認のみを提供する。
type CryptoHandler struct {
	codec *aead.Codec
}

// NewCryptoHandler はCryptoHandlerを生成する。
func NewCryptoHandler(codec *aead.Codec) *CryptoHandler {
	return &CryptoHandler{codec: codec}
}

// encryptedPayload は暗号化ペイロードのJSON表現。
type encryptedPayload struct {
	// Base64エンコードされたnonce（AES-GCMでは12バイト）
	Nonce string `json:"nonce"`
	// Base64エンコードされた暗号文
	Ciphertext string `json:"ciphertext"`
}

// encryptedResponse は暗号化レスポンス。
type encryptedResponse struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	// デバッグ用の平文エコー（本番では無効化する想定）
	DebugPlaintext string `json:"debug_plaintext,omitempty"`
}

// cryptoHealthResponse は暗号デモのヘルスチェックレスポンス。
type cryptoHealthResponse struct {
	Status    string `json:"status"`
	Algorithm string `json:"algorithm"`
	KeyHint   string `json:"key_hint"`
}

// Health は暗号デモエンドポイントの利用可否を返す。
// GET /api/v1/crypto/health
func (h *CryptoHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cryptoHealthResponse{
		Status:    "ok",
		Algorithm: aead.Algorithm,
		KeyHint:   aead.DemoKey,
	})
}

// Echo は暗号文を復号し、新しいnonceで再暗号化して返す。
// POST /api/v1/crypto/echo
func (h *CryptoHandler) Echo(w http.ResponseWriter, r *http.Request) {
	var req encryptedPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	plaintext, err := h.codec.Decrypt(req.Nonce, req.Ciphertext)
	if err != nil {
		writeCryptoError(w, err)
		return
	}

	echoed := fmt.Sprintf("Echo: %s", plaintext)
	nonce, ciphertext, err := h.codec.Encrypt(echoed)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, encryptedResponse{
		Nonce:          nonce,
		Ciphertext:     ciphertext,
		DebugPlaintext: echoed,
	})
}

// encryptRequest は平文暗号化リクエストのボディ。
type encryptRequest struct {
	Plaintext string `json:"plaintext"`
}

// Encrypt は平文を暗号化する（クライアント実装の検証用）。
// POST /api/v1/crypto/encrypt
func (h *CryptoHandler) Encrypt(w http.ResponseWriter, r *http.Request) {
	var req encryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	nonce, ciphertext, err := h.codec.Encrypt(req.Plaintext)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, encryptedResponse{
		Nonce:          nonce,
		Ciphertext:     ciphertext,
		DebugPlaintext: req.Plaintext,
	})
}

// decryptResponse は復号レスポンス。
type decryptResponse struct {
	Plaintext string `json:"plaintext"`
}

// Decrypt は暗号文を復号する（クライアント実装の検証用）。
// POST /api/v1/crypto/decrypt
func (h *CryptoHandler) Decrypt(w http.ResponseWriter, r *http.Request) {
	var req encryptedPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	plaintext, err := h.codec.Decrypt(req.Nonce, req.Ciphertext)
	if err != nil {
		writeCryptoError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decryptResponse{Plaintext: plaintext})
}

// writeCryptoError は復号失敗の400レスポンスを書き込む。
func writeCryptoError(w http.ResponseWriter, err error) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "DECRYPTION_FAILED",
		Message:  fmt.Sprintf("復号に失敗しました: %s", err.Error()),
		Category: "validation",
		Action:   "nonceと暗号文のbase64表現、および使用した鍵を確認してください。",
	})
}
