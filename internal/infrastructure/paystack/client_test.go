package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_InitializeAndVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/transaction/initialize":
			var in InitializeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, int64(150000), in.Amount)
			w.Write([]byte(`{"status":true,"message":"ok","data":{"authorization_url":"https://checkout/abc","access_code":"abc","reference":"` + in.Reference + `"}}`))
		case "/transaction/verify/TOPUP-ABC":
			w.Write([]byte(`{"status":true,"message":"ok","data":{"reference":"TOPUP-ABC","amount":150000,"status":"success"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
		}
	}))
	defer srv.Close()

	c := NewClient("sk_test", srv.URL)
	auth, err := c.Initialize(context.Background(), InitializeRequest{Email: "a@b.co", Amount: 150000, Reference: "TOPUP-ABC"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout/abc", auth.AuthorizationURL)

	v, err := c.Verify(context.Background(), "TOPUP-ABC")
	require.NoError(t, err)
	assert.True(t, v.Succeeded())
	assert.Equal(t, int64(150000), v.Amount)

	_, err = c.Verify(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Transaction reference not found")
}

func TestClient_RequiresSecret(t *testing.T) {
	_, err := NewClient("", "").Verify(context.Background(), "x")
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	sig := Sign(body, "sk_test")
	assert.NoError(t, VerifySignature(body, sig, "sk_test"))
	assert.ErrorIs(t, VerifySignature(body, sig, "other"), ErrSignatureMismatch)
	assert.Error(t, VerifySignature(body, "", "sk_test"))
}
