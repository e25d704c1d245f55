package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"investtracker/internal/engine"
	"investtracker/internal/middleware"
	"investtracker/internal/quotes"
	"investtracker/internal/services"
	"investtracker/internal/testutil"
)

const (
	flowSecret = "flow-secret"
	flowAPIKey = "flow-pipeline-key"
)

// staticSource quotes from a settable price table.
type staticSource struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func (s *staticSource) set(ticker, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[ticker] = decimal.RequireFromString(price)
}

func (s *staticSource) Get(_ context.Context, key quotes.Key) (quotes.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[key.Ticker]
	if !ok {
		return quotes.Quote{}, quotes.ErrQuoteUnavailable
	}
	return quotes.Quote{Key: key, Price: p, ObservedAt: time.Now().UTC()}, nil
}

func (s *staticSource) History(context.Context, quotes.Key, string) ([]quotes.Point, error) {
	return nil, quotes.ErrQuoteUnavailable
}

// testApp holds the full application stack backed by in-memory SQLite.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	Source *staticSource
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
	source := &staticSource{prices: map[string]decimal.Decimal{}}

	auditService := services.NewAuditService(db)
	notificationService := services.NewNotificationService(db)
	runner := engine.NewRunner(engine.NewGormStore(db, notificationService), source, engine.Config{
		CycleTimeout:      5 * time.Second,
		QuoteTimeout:      time.Second,
		QuoteConcurrency:  2,
		QuoteMaxAge:       time.Hour,
		CommitMaxAttempts: 2,
		CommitBackoff:     time.Millisecond,
	})

	assetHandler := NewAssetHandler(services.NewAssetService(db, "USD"), auditService)
	alertHandler := NewAlertHandler(services.NewAlertService(db), auditService)
	historyHandler := NewHistoryHandler(services.NewAlertHistoryService(db))
	notificationHandler := NewNotificationHandler(notificationService)
	portfolioHandler := NewPortfolioHandler(services.NewPortfolioService(db, source, services.PortfolioOptions{
		QuoteConcurrency: 2,
		QuoteTimeout:     time.Second,
		QuoteMaxAge:      time.Hour,
	}))
	pipelineHandler := NewPipelineHandler(runner)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")
	v1.POST("/pipeline/evaluate", middleware.PipelineAuthMiddleware(flowAPIKey), pipelineHandler.Evaluate)

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(flowSecret))
	protected.POST("/assets", assetHandler.CreateAsset)
	protected.GET("/assets/:id", assetHandler.GetAsset)
	protected.PUT("/assets/:id", assetHandler.UpdateAsset)
	protected.DELETE("/assets/:id", assetHandler.DeleteAsset)
	protected.POST("/alerts", alertHandler.CreateAlert)
	protected.GET("/alerts/history", historyHandler.GetHistory)
	protected.GET("/alerts/:id", alertHandler.GetAlert)
	protected.PATCH("/alerts/:id/toggle", alertHandler.ToggleAlert)
	protected.GET("/notifications", notificationHandler.GetNotifications)
	protected.GET("/notifications/unread-count", notificationHandler.GetUnreadCount)
	protected.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
	protected.GET("/portfolio/summary", portfolioHandler.GetSummary)

	return &testApp{DB: db, Router: router, Source: source}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) evaluate(t *testing.T) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/pipeline/evaluate", http.NoBody)
	req.Header.Set("X-API-Key", flowAPIKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("evaluate failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)
}

func ownerToken(t *testing.T) string {
	t.Helper()
	tok, err := middleware.GenerateAccessToken(flowSecret, testutil.NewOwnerID())
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return tok
}

func TestFlow_StopLossLifecycle(t *testing.T) {
	app := setupApp(t)
	token := ownerToken(t)

	// Step 1: add a holding of 10 KO at 100.
	rec := app.request("POST", "/api/v1/assets",
		`{"asset_type":"Stock","ticker":"ko","market":"nyse","quantity":"10","avg_purchase_price":"100","purchase_date":"2025-01-15"}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating asset, got %d: %s", rec.Code, rec.Body.String())
	}
	asset := parseJSON(t, rec)
	assetID := asset["id"].(string)
	if asset["ticker"] != "KO" || asset["currency"] != "USD" {
		t.Errorf("expected normalized KO in USD, got %v", asset)
	}

	// Step 2: stop loss 10% below average.
	rec = app.request("POST", "/api/v1/alerts",
		fmt.Sprintf(`{"asset_id":%q,"alert_type":"stop_loss","target_value":"10","is_percentage":true}`, assetID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating alert, got %d: %s", rec.Code, rec.Body.String())
	}
	alertID := parseJSON(t, rec)["id"].(string)

	// Step 3: 110 arms, 95 holds, 89 fires.
	for _, step := range []struct {
		price string
		fired float64
	}{{"110", 0}, {"95", 0}, {"89", 1}} {
		app.Source.set("KO", step.price)
		report := app.evaluate(t)
		if report["fired"].(float64) != step.fired {
			t.Fatalf("at %s expected fired=%v, got %v", step.price, step.fired, report)
		}
	}

	// Step 4: the rule is off, one event and one unread notification exist.
	rec = app.request("GET", "/api/v1/alerts/"+alertID, "", token)
	if rule := parseJSON(t, rec); rule["is_active"] != false {
		t.Errorf("expected rule inactive after firing, got %v", rule["is_active"])
	}

	rec = app.request("GET", "/api/v1/alerts/history", "", token)
	history := parseJSON(t, rec)
	if history["total_items"].(float64) != 1 {
		t.Fatalf("expected 1 history event, got %v", history["total_items"])
	}
	event := history["data"].([]interface{})[0].(map[string]interface{})
	if event["message"] != "KO Stop Loss: price dropped to stop loss at $89.00 (threshold $90.00)" {
		t.Errorf("unexpected message %q", event["message"])
	}

	rec = app.request("GET", "/api/v1/notifications/unread-count", "", token)
	if count := parseJSON(t, rec)["count"].(float64); count != 1 {
		t.Errorf("expected 1 unread notification, got %v", count)
	}

	// Step 5: further cycles stay silent.
	app.Source.set("KO", "80")
	if report := app.evaluate(t); report["fired"].(float64) != 0 {
		t.Errorf("expected no further firing, got %v", report)
	}

	// Step 6: valuation reflects the live price.
	rec = app.request("GET", "/api/v1/portfolio/summary", "", token)
	summary := parseJSON(t, rec)
	if summary["current_value"] != "800" || summary["total_gain_loss"] != "-200" || summary["total_gain_loss_pct"] != "-20" {
		t.Errorf("unexpected summary: %v", summary)
	}

	// Step 7: history pins the asset identity; quantity corrections still work.
	rec = app.request("PUT", "/api/v1/assets/"+assetID, `{"ticker":"PEP"}`, token)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 changing ticker, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = app.request("PUT", "/api/v1/assets/"+assetID, `{"quantity":"12"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 correcting quantity, got %d: %s", rec.Code, rec.Body.String())
	}

	// Step 8: mark everything read.
	rec = app.request("PUT", "/api/v1/notifications/read-all", "", token)
	if updated := parseJSON(t, rec)["updated"].(float64); updated != 1 {
		t.Errorf("expected 1 notification updated, got %v", updated)
	}
	rec = app.request("GET", "/api/v1/notifications/unread-count", "", token)
	if count := parseJSON(t, rec)["count"].(float64); count != 0 {
		t.Errorf("expected 0 unread, got %v", count)
	}
}

func TestFlow_ReactivationRearms(t *testing.T) {
	app := setupApp(t)
	token := ownerToken(t)

	rec := app.request("POST", "/api/v1/assets",
		`{"asset_type":"CEDEAR","ticker":"GGAL","market":"BCBA","quantity":"5","avg_purchase_price":"150","purchase_date":"2025-02-01","currency":"ARS"}`, token)
	assetID := parseJSON(t, rec)["id"].(string)
	rec = app.request("POST", "/api/v1/alerts",
		fmt.Sprintf(`{"asset_id":%q,"alert_type":"target_sell","target_value":"200"}`, assetID), token)
	alertID := parseJSON(t, rec)["id"].(string)

	app.Source.set("GGAL", "180")
	app.evaluate(t)
	app.Source.set("GGAL", "205")
	if report := app.evaluate(t); report["fired"].(float64) != 1 {
		t.Fatalf("expected firing at 205, got %v", report)
	}

	rec = app.request("PATCH", "/api/v1/alerts/"+alertID+"/toggle", "", token)
	rule := parseJSON(t, rec)
	if rule["is_active"] != true || rule["side_state"] != "unknown" {
		t.Fatalf("expected re-armed rule, got %v", rule)
	}

	// Still above the target after reactivation: no immediate re-fire.
	if report := app.evaluate(t); report["fired"].(float64) != 0 {
		t.Errorf("expected no fire right after reactivation, got %v", report)
	}
	app.Source.set("GGAL", "190")
	app.evaluate(t)
	app.Source.set("GGAL", "201")
	if report := app.evaluate(t); report["fired"].(float64) != 1 {
		t.Errorf("expected second firing after a fresh crossing, got %v", report)
	}
}

func TestFlow_OwnerIsolation(t *testing.T) {
	app := setupApp(t)
	alice, bob := ownerToken(t), ownerToken(t)

	rec := app.request("POST", "/api/v1/assets",
		`{"asset_type":"Stock","ticker":"KO","market":"NYSE","quantity":"1","avg_purchase_price":"50","purchase_date":"2025-01-15"}`, alice)
	assetID := parseJSON(t, rec)["id"].(string)

	rec = app.request("GET", "/api/v1/assets/"+assetID, "", bob)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another owner's asset, got %d", rec.Code)
	}
	rec = app.request("POST", "/api/v1/alerts",
		fmt.Sprintf(`{"asset_id":%q,"alert_type":"target_buy","target_value":"45"}`, assetID), bob)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 alerting on another owner's asset, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = app.request("GET", "/api/v1/assets/"+assetID, "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
}
