package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "Rue Haute 1, 1000 Bruxelles", r.URL.Query().Get("address"))
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "k", "be", time.Second)
}

func TestGeocode(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantValid bool
		wantErr   bool
	}{
		{
			name:      "exact match",
			status:    http.StatusOK,
			body:      `{"status":"OK","results":[{"formatted_address":"Rue Haute 1, 1000 Bruxelles, Belgium","geometry":{"location":{"lat":50.84,"lng":4.35}}}]}`,
			wantValid: true,
		},
		{
			name:   "partial match",
			status: http.StatusOK,
			body:   `{"status":"OK","results":[{"formatted_address":"Bruxelles","partial_match":true}]}`,
		},
		{name: "zero results", status: http.StatusOK, body: `{"status":"ZERO_RESULTS","results":[]}`},
		{name: "quota", status: http.StatusOK, body: `{"status":"OVER_QUERY_LIMIT"}`, wantErr: true},
		{name: "server error", status: http.StatusBadGateway, body: ``, wantErr: true},
		{name: "garbage", status: http.StatusOK, body: `<html>`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := serve(t, tc.status, tc.body).Geocode(context.Background(), "Rue Haute 1, 1000 Bruxelles")
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantValid, res.Valid)
			if tc.wantValid {
				assert.Equal(t, "Rue Haute 1, 1000 Bruxelles, Belgium", res.FormattedAddress)
				assert.InDelta(t, 50.84, res.Lat, 1e-9)
			}
		})
	}
}

func TestGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", "", 20*time.Millisecond).Geocode(context.Background(), "x")
	assert.Error(t, err)
}
