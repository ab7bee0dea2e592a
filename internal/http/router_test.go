package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fingermelody/ai-generation-codebuddy/internal/config"
	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
	"github.com/fingermelody/ai-generation-codebuddy/internal/repo"
	"github.com/fingermelody/ai-generation-codebuddy/internal/secrets"
	"github.com/fingermelody/ai-generation-codebuddy/internal/worker"
)

const testMasterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     1000,
		RateBurst:   1000,
		Payment: config.PaymentConfig{
			OrderTTL:        30 * time.Minute,
			PermissionTTL:   7 * 24 * time.Hour,
			MaxDownloads:    3,
			IdempotencyTTL:  24 * time.Hour,
			CallbackSecrets: map[string]string{},
		},
		Worker:   config.WorkerConfig{Count: 2, QueueSize: 16},
		Provider: config.ProviderConfig{Latency: 0},
		OTEL:     config.OTELConfig{ServiceName: "router-test"},
	}
}

// newTestServer stands up the full router against a throwaway database and a
// running worker pool.
func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), "router_test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	box, err := secrets.New(testMasterKey)
	if err != nil {
		t.Fatalf("secrets.New: %v", err)
	}

	cfg := testConfig()
	pool := worker.NewPool(cfg.Worker.Count, cfg.Worker.QueueSize)
	pool.Start(context.Background())
	t.Cleanup(pool.Shutdown)

	r := gin.New()
	genSvc := RegisterRoutes(r, db, box, pool, cfg)
	pool.FailFn = genSvc.FailTask
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var e apiEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, w.Body.String())
	}
	return e
}

func TestRouter_HealthAndFallbacks(t *testing.T) {
	r := newTestServer(t)

	if w := do(t, r, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}

	w := do(t, r, http.MethodGet, "/api/v1/no-such-route", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown route: %d", w.Code)
	}
	if e := decode(t, w); e.Success || e.Code != "not_found" {
		t.Fatalf("404 envelope: %+v", e)
	}

	w = do(t, r, http.MethodDelete, "/api/v1/models", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("bad method: %d", w.Code)
	}

	if w := do(t, r, http.MethodGet, "/metrics", ""); w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
}

func TestRouter_EndToEndGenerateAndPurchase(t *testing.T) {
	r := newTestServer(t)

	// Register a model through the admin API.
	w := do(t, r, http.MethodPost, "/api/v1/admin/models",
		`{"name":"e2e-model","kind":"text2img","provider":"hunyuan","access_key":"ak","secret_key":"sk"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create model: %d %s", w.Code, w.Body.String())
	}

	// The public catalog shows it, without credentials or endpoint.
	w = do(t, r, http.MethodGet, "/api/v1/models", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list models: %d", w.Code)
	}
	if body := w.Body.String(); bytes.Contains([]byte(body), []byte("access_key")) || bytes.Contains([]byte(body), []byte("api_url")) {
		t.Fatalf("credential material leaked: %s", body)
	}

	// Start a generation task.
	w = do(t, r, http.MethodPost, "/api/v1/generations/text2img",
		`{"prompt":"a lighthouse at dusk","model":"e2e-model"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("start task: %d %s", w.Code, w.Body.String())
	}
	var task domain.Task
	if err := json.Unmarshal(decode(t, w).Data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}

	// Poll until the pool finishes the job.
	var view struct {
		Status   string          `json:"status"`
		Progress int             `json:"progress"`
		Result   json.RawMessage `json:"result"`
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		w = do(t, r, http.MethodGet, "/api/v1/tasks/"+task.ID+"/progress", "")
		if w.Code != http.StatusOK {
			t.Fatalf("progress: %d %s", w.Code, w.Body.String())
		}
		if err := json.Unmarshal(decode(t, w).Data, &view); err != nil {
			t.Fatalf("decode view: %v", err)
		}
		if view.Status == domain.TaskCompleted || view.Status == domain.TaskFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("task did not finish: %+v", view)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if view.Status != domain.TaskCompleted || view.Progress != 100 {
		t.Fatalf("task outcome: %+v", view)
	}
	var result struct {
		Images []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"images"`
	}
	if err := json.Unmarshal(view.Result, &result); err != nil || len(result.Images) != 1 {
		t.Fatalf("result: %s err=%v", view.Result, err)
	}

	// Buy the image.
	w = do(t, r, http.MethodPost, "/api/v1/orders",
		fmt.Sprintf(`{"resource_id":%q,"pay_method":"wechat"}`, result.Images[0].ID))
	if w.Code != http.StatusCreated {
		t.Fatalf("create order: %d %s", w.Code, w.Body.String())
	}
	var orderOut struct {
		Order struct {
			ID     string `json:"id"`
			Amount int64  `json:"amount"`
		} `json:"order"`
		Payment struct {
			PayURL string `json:"pay_url"`
		} `json:"payment"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &orderOut); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if orderOut.Order.Amount != 500 || orderOut.Payment.PayURL == "" {
		t.Fatalf("order: %+v", orderOut)
	}

	// Vendor notifies success.
	w = do(t, r, http.MethodPost, "/api/v1/payments/wechat/callback",
		fmt.Sprintf(`{"out_trade_no":%q,"transaction_id":"wx-1","trade_state":"SUCCESS"}`, orderOut.Order.ID))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("SUCCESS")) {
		t.Fatalf("callback: %d %s", w.Code, w.Body.String())
	}

	// The paid order now resolves a download URL.
	w = do(t, r, http.MethodGet, "/api/v1/orders/"+orderOut.Order.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("order status: %d", w.Code)
	}
	var statusOut struct {
		Order struct {
			Status string `json:"status"`
		} `json:"order"`
		DownloadURL        string `json:"download_url"`
		RemainingDownloads int    `json:"remaining_downloads"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &statusOut); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if statusOut.Order.Status != domain.OrderPaid || statusOut.DownloadURL == "" || statusOut.RemainingDownloads != 2 {
		t.Fatalf("status view: %+v", statusOut)
	}
}
