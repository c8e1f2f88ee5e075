package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/splitpot/revenue"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/httpapi"
	"github.com/splitpot/revenue/store/memory"
	"github.com/splitpot/revenue/types"
)

const (
	ownerToken = "owner-token"
	adminToken = "admin-token"
	userToken  = "user-token"
)

func newTestServer(t *testing.T) (*httptest.Server, *revenue.Engine) {
	t.Helper()

	eng := revenue.New(memory.New())
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop() })

	verifier := httpapi.NewStaticVerifier(map[string]httpapi.Identity{
		ownerToken: {Subject: "owner_1", Role: httpapi.RoleOwner},
		adminToken: {Subject: "admin_1", Role: httpapi.RoleAdmin},
		userToken:  {Subject: "user_1", Role: "user"},
	})

	srv := httptest.NewServer(httpapi.NewServer(eng, verifier).Handler())
	t.Cleanup(srv.Close)
	return srv, eng
}

func doRequest(t *testing.T, method, url, token, body string) (*http.Response, map[string]any) {
	t.Helper()

	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, payload
}

func seedEntry(t *testing.T, eng *revenue.Engine, amount int64, src entry.Source, status entry.Status) {
	t.Helper()
	if _, err := eng.Append(context.Background(), revenue.AppendInput{
		Amount: types.Dollars(amount),
		Source: src,
		Status: status,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, payload := doRequest(t, http.MethodGet, srv.URL+"/healthz", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if payload["ok"] != true {
		t.Errorf("payload = %v, want ok:true", payload)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"bogus token", "not-a-token", http.StatusUnauthorized},
		{"valid token", ownerToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doRequest(t, http.MethodGet, srv.URL+"/api/analytics/owner", tt.token, "")
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestRoleEnforcement(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"owner denied admin analytics", http.MethodGet, "/api/analytics/admin", ownerToken, http.StatusForbidden},
		{"admin allowed admin analytics", http.MethodGet, "/api/analytics/admin", adminToken, http.StatusOK},
		{"admin allowed owner analytics", http.MethodGet, "/api/analytics/owner", adminToken, http.StatusOK},
		{"user denied owner analytics", http.MethodGet, "/api/analytics/owner", userToken, http.StatusForbidden},
		{"user denied coupon list", http.MethodGet, "/api/coupons", userToken, http.StatusForbidden},
		{"owner denied coupon list", http.MethodGet, "/api/coupons", ownerToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, payload := doRequest(t, tt.method, srv.URL+tt.path, tt.token, "")
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want >= 400 {
				if _, ok := payload["message"]; !ok {
					t.Errorf("error body missing message field: %v", payload)
				}
			}
		})
	}
}

func TestOwnerAnalyticsOmitsSystemMetrics(t *testing.T) {
	srv, eng := newTestServer(t)
	seedEntry(t, eng, 100, entry.SourceGameFees, entry.StatusConfirmed)
	seedEntry(t, eng, 200, entry.SourceDeposit, entry.StatusConfirmed)
	seedEntry(t, eng, 10, entry.SourceGameFees, entry.StatusPending)

	resp, payload := doRequest(t, http.MethodGet, srv.URL+"/api/analytics/owner", ownerToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if payload["totalRevenue"] != float64(100) {
		t.Errorf("totalRevenue = %v, want 100", payload["totalRevenue"])
	}
	if _, ok := payload["systemMetrics"]; ok {
		t.Error("owner response exposes systemMetrics")
	}
	if payload["pendingCount"] != float64(0) {
		t.Errorf("owner response exposes pending activity: %v", payload["pendingCount"])
	}
}

func TestAdminAnalytics(t *testing.T) {
	srv, eng := newTestServer(t)
	seedEntry(t, eng, 100, entry.SourceGameFees, entry.StatusConfirmed)
	seedEntry(t, eng, 200, entry.SourceDeposit, entry.StatusConfirmed)
	seedEntry(t, eng, 75, entry.SourceWithdrawal, entry.StatusConfirmed)

	resp, payload := doRequest(t, http.MethodGet, srv.URL+"/api/analytics/admin", adminToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	metrics, ok := payload["systemMetrics"].(map[string]any)
	if !ok {
		t.Fatalf("systemMetrics missing: %v", payload)
	}
	if metrics["systemLiquidity"] != float64(125) {
		t.Errorf("systemLiquidity = %v, want 125", metrics["systemLiquidity"])
	}

	recent, ok := payload["recentTransactions"].([]any)
	if !ok {
		t.Fatalf("recentTransactions missing: %v", payload)
	}
	if len(recent) != 3 {
		t.Errorf("got %d recent transactions, want 3", len(recent))
	}
}

func TestCouponLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	// Generate.
	expires := time.Now().Add(24 * time.Hour).Format(time.RFC3339)
	resp, created := doRequest(t, http.MethodPost, srv.URL+"/api/coupons/generate", adminToken,
		`{"amount": 25.5, "description": "launch promo", "expiresAt": "`+expires+`"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate status = %d: %v", resp.StatusCode, created)
	}
	code, _ := created["code"].(string)
	if code == "" {
		t.Fatalf("no code in response: %v", created)
	}
	if created["amount"] != float64(25.5) {
		t.Errorf("amount = %v, want 25.5", created["amount"])
	}

	// Redeem as a plain authenticated user.
	resp, credit := doRequest(t, http.MethodPost, srv.URL+"/api/coupons/redeem", userToken,
		`{"code": "`+code+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("redeem status = %d: %v", resp.StatusCode, credit)
	}
	if credit["amount"] != float64(25.5) {
		t.Errorf("credit amount = %v, want 25.5", credit["amount"])
	}
	if credit["source"] != "deposit" || credit["status"] != "confirmed" {
		t.Errorf("credit = %v/%v, want deposit/confirmed", credit["source"], credit["status"])
	}
	if credit["userId"] != "user_1" {
		t.Errorf("credit userId = %v, want user_1", credit["userId"])
	}

	// Second redemption conflicts.
	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/api/coupons/redeem", userToken,
		`{"code": "`+code+`"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second redeem status = %d, want 409", resp.StatusCode)
	}
}

func TestCouponErrorStatuses(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{
			name: "unknown code",
			path: "/api/coupons/redeem",
			body: `{"code": "NOSUCHCODE"}`,
			want: http.StatusNotFound,
		},
		{
			name: "missing code",
			path: "/api/coupons/redeem",
			body: `{}`,
			want: http.StatusBadRequest,
		},
		{
			name: "invalid amount",
			path: "/api/coupons/generate",
			body: `{"amount": 0, "expiresAt": "2099-01-01T00:00:00Z"}`,
			want: http.StatusBadRequest,
		},
		{
			name: "past expiry",
			path: "/api/coupons/generate",
			body: `{"amount": 5, "expiresAt": "2001-01-01T00:00:00Z"}`,
			want: http.StatusBadRequest,
		},
		{
			name: "unknown body field",
			path: "/api/coupons/generate",
			body: `{"amount": 5, "value": 10}`,
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := adminToken
			resp, payload := doRequest(t, http.MethodPost, srv.URL+tt.path, token, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d (%v)", resp.StatusCode, tt.want, payload)
			}
		})
	}
}

func TestDuplicateCodeConflict(t *testing.T) {
	srv, _ := newTestServer(t)

	expires := time.Now().Add(24 * time.Hour).Format(time.RFC3339)
	body := `{"code": "PROMO1", "amount": 5, "expiresAt": "` + expires + `"}`

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/coupons/generate", adminToken, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first generate status = %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/api/coupons/generate", adminToken, body)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate generate status = %d, want 409", resp.StatusCode)
	}
}

func TestExpireCoupon(t *testing.T) {
	srv, eng := newTestServer(t)

	c, err := eng.Generate(context.Background(), revenue.GenerateInput{
		Amount:    types.Dollars(5),
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/coupons/"+c.ID.String()+"/expire", adminToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expire status = %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/api/coupons/redeem", userToken,
		`{"code": "`+c.Code+`"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("redeem after expire status = %d, want 409", resp.StatusCode)
	}
}

func TestLifetimeCouponsOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, created := doRequest(t, http.MethodPost, srv.URL+"/api/lifetime-coupons/create", adminToken,
		`{"maxRedemptions": 2, "features": ["premium"]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %v", resp.StatusCode, created)
	}
	code, _ := created["code"].(string)
	if code == "" {
		t.Fatalf("no code in response: %v", created)
	}

	// List response wraps the slice.
	resp, listed := doRequest(t, http.MethodGet, srv.URL+"/api/lifetime-coupons", adminToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	coupons, ok := listed["coupons"].([]any)
	if !ok || len(coupons) != 1 {
		t.Fatalf("list payload = %v, want 1 wrapped coupon", listed)
	}

	resp, grant := doRequest(t, http.MethodPost, srv.URL+"/api/lifetime-coupons/redeem", userToken,
		`{"code": "`+code+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("redeem status = %d: %v", resp.StatusCode, grant)
	}
	if grant["remaining"] != float64(1) {
		t.Errorf("remaining = %v, want 1", grant["remaining"])
	}

	// Exhaust the cap.
	doRequest(t, http.MethodPost, srv.URL+"/api/lifetime-coupons/redeem", userToken,
		`{"code": "`+code+`"}`)
	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/api/lifetime-coupons/redeem", userToken,
		`{"code": "`+code+`"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("over-cap status = %d, want 409", resp.StatusCode)
	}
}
