package antom

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBasePath = "/ams/sandbox/api/v1"

type capturedRequest struct {
	path        string
	clientID    string
	requestTime string
	signature   string
	body        string
}

// setupGateway 启动假网关，handler 返回响应体和状态码
func setupGateway(t *testing.T, status int, respond func(req map[string]interface{}) string) (*Client, *capturedRequest) {
	t.Helper()

	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		captured.path = r.URL.Path
		captured.clientID = r.Header.Get("Client-Id")
		captured.requestTime = r.Header.Get("Request-Time")
		captured.signature = r.Header.Get("Signature")
		captured.body = string(raw)

		var req map[string]interface{}
		_ = json.Unmarshal(raw, &req)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respond(req))
	}))
	t.Cleanup(server.Close)

	cfg := &Config{
		ClientID:    "TEST_CLIENT",
		KeyVersion:  "1",
		PrivateKey:  newTestKey(t),
		BaseURL:     server.URL,
		BasePath:    testBasePath,
		Timeout:     5 * time.Second,
		NotifyURL:   "https://example.com/api/v1/payment/notify",
		RedirectURL: "https://example.com/payment/success",
	}
	return NewClient(cfg), captured
}

func TestClient_CreatePayment(t *testing.T) {
	client, captured := setupGateway(t, http.StatusOK, func(req map[string]interface{}) string {
		return `{"result":{"resultStatus":"U","resultCode":"PAYMENT_IN_PROCESS","resultMessage":"processing"},"paymentId":"PAY_1","normalUrl":"https://cashier.example.com/pay"}`
	})

	result, err := client.CreatePayment(context.Background(), CreatePaymentRequest{
		Amount:            decimal.RequireFromString("9.99"),
		Currency:          "USD",
		PaymentMethodType: "GCASH",
		BuyerID:           "42",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://cashier.example.com/pay", result.CashierURL)
	assert.Equal(t, "PAY_1", result.PaymentID)
	assert.Regexp(t, `^REQUEST_\d+_[0-9a-f]{12}$`, result.PaymentRequestID)
	assert.Regexp(t, `^ORDER_\d+_[0-9a-f]{12}$`, result.OrderID)
	assert.NotEmpty(t, result.Raw)

	assert.Equal(t, testBasePath+"/payments/pay", captured.path)
	assert.Equal(t, "TEST_CLIENT", captured.clientID)
	assert.True(t, client.Signer().Verify("POST", captured.path, captured.signature, captured.requestTime, captured.body))

	var body payRequest
	require.NoError(t, json.Unmarshal([]byte(captured.body), &body))
	assert.Equal(t, result.PaymentRequestID, body.PaymentRequestID)
	assert.Equal(t, Amount{Currency: "USD", Value: "999"}, body.PaymentAmount)
	assert.Equal(t, body.PaymentAmount, body.Order.OrderAmount)
	assert.Equal(t, "42", body.Order.Buyer.ReferenceBuyerID)
	assert.Equal(t, "CASHIER_PAYMENT", body.ProductCode)
	assert.Equal(t, "WEB", body.Env.TerminalType)
	assert.Equal(t, "https://example.com/api/v1/payment/notify", body.PaymentNotifyURL)
	assert.Nil(t, body.PaymentFactor)
}

func TestClient_CreatePayment_FreshIDsPerCall(t *testing.T) {
	client, _ := setupGateway(t, http.StatusOK, func(req map[string]interface{}) string {
		return `{"result":{"resultStatus":"S","resultCode":"SUCCESS"}}`
	})

	req := CreatePaymentRequest{Amount: decimal.NewFromInt(1), Currency: "USD", PaymentMethodType: "GCASH"}
	first, err := client.CreatePayment(context.Background(), req)
	require.NoError(t, err)
	second, err := client.CreatePayment(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.PaymentRequestID, second.PaymentRequestID)
	assert.NotEqual(t, first.OrderID, second.OrderID)
}

func TestClient_CreatePayment_CardAuthorization(t *testing.T) {
	client, captured := setupGateway(t, http.StatusOK, func(req map[string]interface{}) string {
		return `{"result":{"resultStatus":"U","resultCode":"PAYMENT_IN_PROCESS"},"redirectActionForm":{"redirectUrl":"https://cashier.example.com/card"}}`
	})

	result, err := client.CreatePayment(context.Background(), CreatePaymentRequest{
		Amount:            decimal.RequireFromString("20"),
		Currency:          "PHP",
		PaymentMethodType: "VISA",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cashier.example.com/card", result.CashierURL)

	var body payRequest
	require.NoError(t, json.Unmarshal([]byte(captured.body), &body))
	require.NotNil(t, body.PaymentFactor)
	assert.True(t, body.PaymentFactor.IsAuthorization)
}

func TestClient_CreatePayment_Rejected(t *testing.T) {
	client, _ := setupGateway(t, http.StatusOK, func(req map[string]interface{}) string {
		return `{"result":{"resultStatus":"F","resultCode":"INVALID_AMOUNT","resultMessage":"amount invalid"}}`
	})

	_, err := client.CreatePayment(context.Background(), CreatePaymentRequest{
		Amount: decimal.NewFromInt(1), Currency: "USD", PaymentMethodType: "GCASH",
	})
	assert.ErrorIs(t, err, ErrPaymentRejected)
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestClient_TransportFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`, http.StatusInternalServerError},
		{"bad request", http.StatusBadRequest, `bad`, http.StatusBadRequest},
		{"invalid json", http.StatusOK, `<html>`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := setupGateway(t, tt.status, func(req map[string]interface{}) string { return tt.body })

			_, err := client.QueryPayment(context.Background(), "REQUEST_1")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTransport)

			var te *TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.wantStatus, te.StatusCode)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	client := NewClient(&Config{
		ClientID:   "TEST_CLIENT",
		KeyVersion: "1",
		PrivateKey: newTestKey(t),
		BaseURL:    "http://127.0.0.1:1",
		BasePath:   testBasePath,
		Timeout:    time.Second,
	})

	_, err := client.CancelPayment(context.Background(), "REQUEST_1")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestClient_MalformedSchema(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing result", `{"paymentId":"PAY_1"}`},
		{"unknown result status", `{"result":{"resultStatus":"X","resultCode":"SUCCESS"}}`},
		{"missing result code", `{"result":{"resultStatus":"S"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := setupGateway(t, http.StatusOK, func(req map[string]interface{}) string { return tt.body })

			_, err := client.QueryPayment(context.Background(), "REQUEST_1")
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.NotErrorIs(t, err, ErrTransport)
		})
	}
}

func TestClient_QueryPayment(t *testing.T) {
	client, captured := setupGateway(t, http.StatusOK, func(req map[string]interface{}) string {
		return `{"result":{"resultStatus":"S","resultCode":"SUCCESS"},"paymentStatus":"PROCESSING","paymentId":"PAY_1"}`
	})

	result, err := client.QueryPayment(context.Background(), "REQUEST_1")
	require.NoError(t, err)

	assert.Equal(t, testBasePath+"/payments/inquiryPayment", captured.path)
	assert.JSONEq(t, `{"paymentRequestId":"REQUEST_1"}`, captured.body)
	assert.Equal(t, StatusUnknown, result.Status())
}

func TestClient_CancelPayment(t *testing.T) {
	client, captured := setupGateway(t, http.StatusOK, func(req map[string]interface{}) string {
		return `{"result":{"resultStatus":"S","resultCode":"SUCCESS"}}`
	})

	result, err := client.CancelPayment(context.Background(), "REQUEST_1")
	require.NoError(t, err)
	assert.Equal(t, testBasePath+"/payments/cancel", captured.path)
	assert.Equal(t, StatusSuccess, result.Result.ResultStatus)
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"9.99", "999"},
		{"100", "10000"},
		{"0.125", "13"},
		{"10.005", "1001"},
		{"19.994", "1999"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MinorUnits(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestResolveStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, ResolveStatus("SUCCESS", Result{ResultStatus: "U"}))
	assert.Equal(t, StatusFailed, ResolveStatus("FAIL", Result{ResultStatus: "S"}))
	assert.Equal(t, StatusCancelled, ResolveStatus("CANCELLED", Result{}))
	assert.Equal(t, StatusFailed, ResolveStatus("", Result{ResultStatus: "F"}))
}

func TestMethods(t *testing.T) {
	list := Methods()
	assert.Len(t, list, 8)

	m, ok := LookupMethod("GCASH")
	require.True(t, ok)
	assert.Equal(t, "PHP", m.Currency)

	assert.True(t, IsCard("MASTERCARD"))
	assert.True(t, IsCard("CARD"))
	assert.False(t, IsCard("GRABPAY"))
}
