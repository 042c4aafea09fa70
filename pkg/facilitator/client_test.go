package facilitator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnac-io/paygate/internal/g"
	"github.com/arnac-io/paygate/pkg/core"
)

var mnee = core.Asset{
	Symbol:   "MNEE",
	Address:  "0x8ccedbAe4916b79da7F3F612EfB2EB93A2bFD6cF",
	Decimals: 18,
	Network:  "ethereum",
	Domain: core.SignatureDomain{
		Name:    "MNEE",
		Version: "1",
		Scheme:  core.SchemeTransferWithAuthorization,
	},
}

func paymentRequest(credential *string) core.PaymentRequest {
	return core.PaymentRequest{
		ResourceURL: "http://localhost:8081/pay/AAAAAAAAAA",
		Method:      http.MethodGet,
		Description: "Invoice AAAAAAAAAA",
		PayTo:       "0xM",
		Asset:       mnee,
		Amount:      decimal.RequireFromString("1000000000000000000000000"),
		Credential:  credential,
	}
}

func credential(t *testing.T) *string {
	payload := map[string]any{
		"x402Version": 1,
		"scheme":      "exact",
		"network":     "ethereum",
		"payload": map[string]any{
			"signature": "0xsig",
			"authorization": map[string]any{
				"from": "0xAA",
				"to":   "0xM",
			},
		},
	}
	raw, err := json.Marshal(payload)
	require.Nil(t, err)
	return g.Pointer(base64.StdEncoding.EncodeToString(raw))
}

type fakeFacilitator struct {
	verifyStatus int
	verifyBody   string
	settleStatus int
	settleBody   string
	verifyCalls  atomic.Int32
	settleCalls  atomic.Int32
	lastAuth     atomic.Value
	lastBody     atomic.Value
}

func (f *fakeFacilitator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.lastBody.Store(body)
	f.lastAuth.Store(r.Header.Get("Authorization"))
	switch r.URL.Path {
	case "/verify":
		f.verifyCalls.Add(1)
		w.WriteHeader(f.verifyStatus)
		w.Write([]byte(f.verifyBody))
	case "/settle":
		f.settleCalls.Add(1)
		w.WriteHeader(f.settleStatus)
		w.Write([]byte(f.settleBody))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, url string) *Client {
	c, err := NewClient(zap.NewNop(), url,
		WithAPIKey("secret"),
		WithVerifyRetries(3, time.Millisecond),
		WithTimeout(time.Second))
	require.Nil(t, err)
	return c
}

func TestClient_Challenge(t *testing.T) {
	fake := &fakeFacilitator{}
	server := httptest.NewServer(fake)
	defer server.Close()

	c := newTestClient(t, server.URL)
	result, err := c.Process(context.Background(), paymentRequest(nil))
	require.Nil(t, err)
	require.Equal(t, core.ResultChallenge, result.Kind)
	require.Equal(t, http.StatusPaymentRequired, result.StatusCode)
	require.Equal(t, "application/json", result.Header.Get("Content-Type"))
	require.Equal(t, int32(0), fake.verifyCalls.Load())

	var body struct {
		X402Version int    `json:"x402Version"`
		Error       string `json:"error"`
		Accepts     []struct {
			Scheme            string `json:"scheme"`
			Network           string `json:"network"`
			MaxAmountRequired string `json:"maxAmountRequired"`
			Resource          string `json:"resource"`
			PayTo             string `json:"payTo"`
			MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
			Asset             string `json:"asset"`
			Extra             struct {
				Name        string `json:"name"`
				Version     string `json:"version"`
				PrimaryType string `json:"primaryType"`
			} `json:"extra"`
		} `json:"accepts"`
	}
	require.Nil(t, json.Unmarshal(result.Body, &body))
	require.Equal(t, 1, body.X402Version)
	require.Len(t, body.Accepts, 1)
	accept := body.Accepts[0]
	require.Equal(t, "exact", accept.Scheme)
	require.Equal(t, "ethereum", accept.Network)
	require.Equal(t, "1000000000000000000000000", accept.MaxAmountRequired)
	require.Equal(t, "http://localhost:8081/pay/AAAAAAAAAA", accept.Resource)
	require.Equal(t, "0xM", accept.PayTo)
	require.Equal(t, 300, accept.MaxTimeoutSeconds)
	require.Equal(t, mnee.Address, accept.Asset)
	require.Equal(t, "MNEE", accept.Extra.Name)
	require.Equal(t, "1", accept.Extra.Version)
	require.Equal(t, "TransferWithAuthorization", accept.Extra.PrimaryType)
}

func TestClient_Process(t *testing.T) {
	tests := []struct {
		name        string
		fake        *fakeFacilitator
		credential  *string
		wantKind    core.ResultKind
		wantErr     bool
		wantReason  string
		verifyCalls int32
		settleCalls int32
		wantReceipt string
	}{
		{
			name: "settled",
			fake: &fakeFacilitator{
				verifyStatus: 200,
				verifyBody:   `{"isValid":true,"payer":"0xAA"}`,
				settleStatus: 200,
				settleBody:   `{"success":true,"transaction":"Q-1","network":"ethereum","payer":"0xAA"}`,
			},
			wantKind:    core.ResultSettled,
			verifyCalls: 1,
			settleCalls: 1,
			wantReceipt: `{"success":true,"transaction":"Q-1","network":"ethereum","payer":"0xAA"}`,
		},
		{
			name: "invalid signature",
			fake: &fakeFacilitator{
				verifyStatus: 200,
				verifyBody:   `{"isValid":false,"invalidReason":"invalid_exact_evm_payload_signature"}`,
			},
			wantKind:    core.ResultRejected,
			wantReason:  "invalid_exact_evm_payload_signature",
			verifyCalls: 1,
		},
		{
			name: "verify refused",
			fake: &fakeFacilitator{
				verifyStatus: 400,
				verifyBody:   `{"error":"insufficient_funds"}`,
			},
			wantKind:    core.ResultRejected,
			wantReason:  "insufficient_funds",
			verifyCalls: 1,
		},
		{
			name: "settlement failed",
			fake: &fakeFacilitator{
				verifyStatus: 200,
				verifyBody:   `{"isValid":true}`,
				settleStatus: 200,
				settleBody:   `{"success":false,"errorReason":"unsupported_scheme"}`,
			},
			wantKind:    core.ResultRejected,
			wantReason:  "unsupported_scheme",
			verifyCalls: 1,
			settleCalls: 1,
		},
		{
			name: "receipt without success flag",
			fake: &fakeFacilitator{
				verifyStatus: 200,
				verifyBody:   `{"isValid":true}`,
				settleStatus: 200,
				settleBody:   `{"transaction":"Q-1","payer":"0xC"}`,
			},
			wantKind:    core.ResultSettled,
			verifyCalls: 1,
			settleCalls: 1,
			wantReceipt: `{"transaction":"Q-1","payer":"0xC"}`,
		},
		{
			name: "string success flag",
			fake: &fakeFacilitator{
				verifyStatus: 200,
				verifyBody:   `{"isValid":true}`,
				settleStatus: 200,
				settleBody:   `{"success":"true","transaction":"Q-1"}`,
			},
			wantKind:    core.ResultSettled,
			verifyCalls: 1,
			settleCalls: 1,
			wantReceipt: `{"success":"true","transaction":"Q-1"}`,
		},
		{
			name: "error reason without transaction",
			fake: &fakeFacilitator{
				verifyStatus: 200,
				verifyBody:   `{"isValid":true}`,
				settleStatus: 200,
				settleBody:   `{"errorReason":"invalid_transaction_state"}`,
			},
			wantKind:    core.ResultRejected,
			wantReason:  "invalid_transaction_state",
			verifyCalls: 1,
			settleCalls: 1,
		},
		{
			name: "verify unavailable is retried",
			fake: &fakeFacilitator{
				verifyStatus: 503,
			},
			wantErr:     true,
			verifyCalls: 3,
		},
		{
			name: "settle unavailable is not retried",
			fake: &fakeFacilitator{
				verifyStatus: 200,
				verifyBody:   `{"isValid":true}`,
				settleStatus: 502,
			},
			wantErr:     true,
			verifyCalls: 1,
			settleCalls: 1,
		},
		{
			name:       "garbage credential",
			fake:       &fakeFacilitator{},
			credential: g.Pointer("%%%not-base64%%%"),
			wantKind:   core.ResultRejected,
			wantReason: "invalid payment header",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.fake)
			defer server.Close()

			cred := tt.credential
			if cred == nil {
				cred = credential(t)
			}
			c := newTestClient(t, server.URL)
			result, err := c.Process(context.Background(), paymentRequest(cred))
			require.Equal(t, tt.verifyCalls, tt.fake.verifyCalls.Load())
			require.Equal(t, tt.settleCalls, tt.fake.settleCalls.Load())
			if tt.wantErr {
				require.NotNil(t, err)
				return
			}
			require.Nil(t, err)
			require.Equal(t, tt.wantKind, result.Kind)
			if tt.wantReason != "" {
				require.Equal(t, tt.wantReason, result.Reason)
				require.Equal(t, http.StatusPaymentRequired, result.StatusCode)
			}
			if tt.wantReceipt != "" {
				require.JSONEq(t, tt.wantReceipt, string(result.Receipt))
				header, err := base64.StdEncoding.DecodeString(result.Header.Get(PaymentResponseHeader))
				require.Nil(t, err)
				require.JSONEq(t, tt.wantReceipt, string(header))
				require.Equal(t, "Bearer secret", tt.fake.lastAuth.Load())

				var sent struct {
					X402Version    int             `json:"x402Version"`
					PaymentPayload json.RawMessage `json:"paymentPayload"`
				}
				require.Nil(t, json.Unmarshal(tt.fake.lastBody.Load().([]byte), &sent))
				require.Equal(t, 1, sent.X402Version)
				require.Contains(t, string(sent.PaymentPayload), `"from":"0xAA"`)
			}
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(&fakeFacilitator{})
	url := server.URL
	server.Close()

	c := newTestClient(t, url)
	_, err := c.Process(context.Background(), paymentRequest(credential(t)))
	require.NotNil(t, err)
}
