package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	intconfig "marketplace/internal/config"
	"marketplace/internal/services"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
)

const testWebhookSecret = "s3cret"

var sqlmockErrConn = errors.New("koneksi database terputus")

func newCallbackRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	prev := intconfig.DB
	intconfig.DB = db
	t.Cleanup(func() { intconfig.DB = prev })

	Configure(intconfig.Env{
		WebhookSecret:      testWebhookSecret,
		WebhookBearerToken: "token-abc",
	}, nil)

	r := gin.New()
	r.POST("/api/payments/callback", PaymentCallback)
	return r, mock
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaymentCallbackRejectsBadSignature(t *testing.T) {
	r, mock := newCallbackRouter(t)

	body := []byte(`{"depositId":"dep-1","status":"COMPLETED","currency":"RWF"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", bytes.NewReader(body))
	req.Header.Set(signatureHeader, sign("wrong-secret", body))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
	// nothing may be persisted before authentication passes
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database activity: %v", err)
	}
}

func TestPaymentCallbackAcceptsBearerToken(t *testing.T) {
	r, mock := newCallbackRouter(t)

	// malformed payload still gets logged and answered with 200
	body := []byte(`{"status":"COMPLETED"}`)
	mock.ExpectExec("INSERT INTO webhook_log").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE webhook_log SET processed=0").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer token-abc")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("authenticated callback must get 200, got %d", w.Code)
	}
	var resp services.CallbackResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Success {
		t.Fatalf("invalid payload should report success=false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPaymentCallbackInternalFailureStillReturns200(t *testing.T) {
	r, mock := newCallbackRouter(t)

	body := []byte(`{"depositId":"dep-1","status":"COMPLETED","currency":"RWF","metadata":{"internalReference":"BOOKING-55"}}`)
	mock.ExpectExec("INSERT INTO webhook_log").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// ledger transaction fails to open; the log entry records the error
	mock.ExpectBegin().WillReturnError(sqlmockErrConn)
	mock.ExpectExec("UPDATE webhook_log SET processed=0").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", bytes.NewReader(body))
	req.Header.Set(signatureHeader, sign(testWebhookSecret, body))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("internal failures must not leak as non-200, got %d", w.Code)
	}
	var resp services.CallbackResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Success {
		t.Fatalf("failed processing should report success=false")
	}
	if resp.TransactionID != "dep-1" {
		t.Fatalf("response should echo the transaction id, got %q", resp.TransactionID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
