package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
	"github.com/fingermelody/ai-generation-codebuddy/internal/providers/payment"
	"github.com/fingermelody/ai-generation-codebuddy/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

// envelope mirrors the response shape for assertions.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id"`
	Code      string          `json:"code"`
	Message   string          `json:"message"`
}

func perform(t *testing.T, r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, w.Body.String())
	}
	return e
}

//
// Service fakes. Each records the last call and serves canned returns.
//

type fakeGenSvc struct {
	lastText  services.TextToImageInput
	lastModel services.ImageToModelInput
	lastID    string

	task *domain.Task
	view *services.TaskView
	err  error
}

func (f *fakeGenSvc) StartTextToImage(_ context.Context, in services.TextToImageInput) (*domain.Task, error) {
	f.lastText = in
	return f.task, f.err
}

func (f *fakeGenSvc) StartImageToModel3D(_ context.Context, in services.ImageToModelInput) (*domain.Task, error) {
	f.lastModel = in
	return f.task, f.err
}

func (f *fakeGenSvc) Progress(_ context.Context, taskID string) (*services.TaskView, error) {
	f.lastID = taskID
	return f.view, f.err
}

type fakeOrderSvc struct {
	lastCreate    services.CreateOrderInput
	lastOrderID   string
	lastMethod    string
	lastBody      []byte
	lastSignature string

	out    *services.OrderWithIntent
	view   *services.OrderView
	orders []domain.Order
	total  int64
	ack    payment.Ack
	err    error
}

func (f *fakeOrderSvc) CreateOrder(_ context.Context, in services.CreateOrderInput) (*services.OrderWithIntent, error) {
	f.lastCreate = in
	return f.out, f.err
}

func (f *fakeOrderSvc) OrderStatus(_ context.Context, orderID string) (*services.OrderView, error) {
	f.lastOrderID = orderID
	return f.view, f.err
}

func (f *fakeOrderSvc) ListOrders(_ context.Context, limit, offset int) ([]domain.Order, int64, error) {
	return f.orders, f.total, f.err
}

func (f *fakeOrderSvc) HandleCallback(_ context.Context, method string, body []byte, signature string) (payment.Ack, error) {
	f.lastMethod = method
	f.lastBody = body
	f.lastSignature = signature
	return f.ack, f.err
}

type fakeModelSvc struct {
	lastID    string
	lastInput services.ModelInput

	public  []services.PublicModel
	profile *domain.ModelProfile
	all     []domain.ModelProfile
	err     error
}

func (f *fakeModelSvc) List(context.Context) ([]services.PublicModel, error) {
	return f.public, f.err
}

func (f *fakeModelSvc) ListAdmin(context.Context) ([]domain.ModelProfile, error) {
	return f.all, f.err
}

func (f *fakeModelSvc) Add(_ context.Context, in services.ModelInput) (*domain.ModelProfile, error) {
	f.lastInput = in
	return f.profile, f.err
}

func (f *fakeModelSvc) Update(_ context.Context, id string, in services.ModelInput) (*domain.ModelProfile, error) {
	f.lastID = id
	f.lastInput = in
	return f.profile, f.err
}

func (f *fakeModelSvc) ToggleStatus(_ context.Context, id string) (*domain.ModelProfile, error) {
	f.lastID = id
	return f.profile, f.err
}

func (f *fakeModelSvc) Delete(_ context.Context, id string) error {
	f.lastID = id
	return f.err
}

type fakeStatsSvc struct {
	overview *services.Overview
	err      error
}

func (f *fakeStatsSvc) Overview(context.Context) (*services.Overview, error) {
	return f.overview, f.err
}

// newTestRouter registers the API routes against the given fakes.
func newTestRouter(gen *fakeGenSvc, order *fakeOrderSvc, model *fakeModelSvc, stats *fakeStatsSvc) *gin.Engine {
	h := New(gen, order, model, stats)
	r := gin.New()
	r.POST("/generations/text2img", h.TextToImage)
	r.POST("/generations/img2model3d", h.ImageToModel3D)
	r.GET("/tasks/:id/progress", h.TaskProgress)
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders", h.ListOrders)
	r.GET("/orders/:id", h.OrderStatus)
	r.POST("/payments/:method/callback", h.PaymentCallback)
	r.GET("/models", h.ListModels)
	r.GET("/admin/models", h.AdminListModels)
	r.POST("/admin/models", h.AdminCreateModel)
	r.PUT("/admin/models/:id", h.AdminUpdateModel)
	r.PATCH("/admin/models/:id/status", h.AdminToggleModelStatus)
	r.DELETE("/admin/models/:id", h.AdminDeleteModel)
	r.GET("/admin/stats", h.AdminStats)
	return r
}
