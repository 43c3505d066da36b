package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryInt(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		hi      int
		want    int
		wantErr string
	}{
		{name: "blank uses fallback", raw: " ", hi: 200, want: 50},
		{name: "in range", raw: "25", hi: 200, want: 25},
		{name: "not a number", raw: "ten", hi: 200, wantErr: "must be an integer"},
		{name: "below floor", raw: "0", hi: 200, wantErr: "must be at least 1"},
		{name: "above ceiling", raw: "201", hi: 200, wantErr: "must be at most 200"},
		{name: "unbounded", raw: "100000", hi: -1, want: 100000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := queryInt(tt.raw, 50, 1, tt.hi)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageParamsRejectsBadLimit(t *testing.T) {
	rr := httptest.NewRecorder()
	_, _, ok := pageParams(rr, httptest.NewRequest(http.MethodGet, "/?limit=500", nil))
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "limit must be at most 200")
}

func TestIPRateLimiterBucketsPerAddress(t *testing.T) {
	limiter := newRequestRateLimiter(1, 2, time.Minute)
	frozen := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return frozen }

	assert.True(t, limiter.allow("10.0.0.1"))
	assert.True(t, limiter.allow("10.0.0.1"))
	assert.False(t, limiter.allow("10.0.0.1"), "burst exhausted")
	assert.True(t, limiter.allow("10.0.0.2"), "other addresses keep their own bucket")

	frozen = frozen.Add(time.Second)
	assert.True(t, limiter.allow("10.0.0.1"), "one token refills per second")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5123"
	assert.Equal(t, "192.0.2.7", clientIP(req))

	req.RemoteAddr = "192.0.2.8"
	assert.Equal(t, "192.0.2.8", clientIP(req))

	req.RemoteAddr = ""
	assert.Equal(t, "unknown", clientIP(req))
}

func TestAuthenticationHeaders(t *testing.T) {
	r := mustRouter(t, testConfig())

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "header %q", header)
	}

	anonymous := httptest.NewRequest(http.MethodGet, "/api/v1/listings/lst_missing", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, anonymous)
	assert.Equal(t, http.StatusNotFound, rr.Code, "optional auth lets anonymous reads through")

	bogus := httptest.NewRequest(http.MethodGet, "/api/v1/listings/lst_missing", nil)
	bogus.Header.Set("Authorization", "Bearer not-a-jwt")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, bogus)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
