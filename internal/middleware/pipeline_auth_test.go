package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

// evaluateRouter mounts the guard in front of a stand-in evaluate endpoint
// and counts how often the endpoint runs.
func evaluateRouter(apiKey string, calls *int) *gin.Engine {
	r := gin.New()
	r.POST("/pipeline/evaluate", PipelineAuthMiddleware(apiKey), func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusOK, gin.H{"fired": 0})
	})
	return r
}

func TestPipelineAuthMiddleware(t *testing.T) {
	const key = "k3y-for-cron-trigger"

	tests := []struct {
		name       string
		configured string
		header     string
		wantStatus int
		wantCode   string
	}{
		{name: "matching_key", configured: key, header: key, wantStatus: http.StatusOK},
		{name: "wrong_key", configured: key, header: "other", wantStatus: http.StatusUnauthorized, wantCode: "INVALID_API_KEY"},
		{name: "no_header", configured: key, wantStatus: http.StatusUnauthorized, wantCode: "INVALID_API_KEY"},
		{name: "prefix_of_key", configured: key, header: key[:5], wantStatus: http.StatusUnauthorized, wantCode: "INVALID_API_KEY"},
		{name: "key_with_suffix", configured: key, header: key + "x", wantStatus: http.StatusUnauthorized, wantCode: "INVALID_API_KEY"},
		{name: "unconfigured", header: key, wantStatus: http.StatusServiceUnavailable, wantCode: "PIPELINE_NOT_CONFIGURED"},
		{name: "unconfigured_no_header", wantStatus: http.StatusServiceUnavailable, wantCode: "PIPELINE_NOT_CONFIGURED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			router := evaluateRouter(tt.configured, &calls)

			req := httptest.NewRequest(http.MethodPost, "/pipeline/evaluate", http.NoBody)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantCode == "" {
				if calls != 1 {
					t.Errorf("expected evaluate to run once, ran %d times", calls)
				}
				return
			}
			if calls != 0 {
				t.Errorf("expected evaluate not to run, ran %d times", calls)
			}
			errObj, ok := parseBody(t, rec)["error"].(map[string]interface{})
			if !ok {
				t.Fatal("expected error object in response")
			}
			if code, _ := errObj["code"].(string); code != tt.wantCode {
				t.Errorf("error code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestPipelineAuthMiddleware_BearerTokenIsNotAKey(t *testing.T) {
	var calls int
	router := evaluateRouter("k3y", &calls)

	req := httptest.NewRequest(http.MethodPost, "/pipeline/evaluate", http.NoBody)
	req.Header.Set("Authorization", "Bearer k3y")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized || calls != 0 {
		t.Errorf("expected 401 without running evaluate, got %d after %d calls", rec.Code, calls)
	}
}
