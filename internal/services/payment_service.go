package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
	"github.com/fingermelody/ai-generation-codebuddy/internal/providers/payment"
	"github.com/fingermelody/ai-generation-codebuddy/internal/repo"
)

// zhPrinter renders CNY amounts in payment descriptions with locale-aware
// digit grouping.
var zhPrinter = message.NewPrinter(language.SimplifiedChinese)

// CreateOrderInput is the request payload for creating a payment order.
type CreateOrderInput struct {
	ResourceID string `json:"resource_id"`
	PayMethod  string `json:"pay_method"`
	UserID     string `json:"user_id"`

	// IdempotencyKey, when present, makes retried creations return the
	// first order instead of minting a second one.
	IdempotencyKey string `json:"-"`
}

// OrderWithIntent pairs a created order with its vendor payment artifact.
type OrderWithIntent struct {
	Order    *domain.Order   `json:"order"`
	Intent   *payment.Intent `json:"payment"`
	Replayed bool            `json:"-"`
}

// OrderView is the read-side projection of an order. Download fields are
// populated only while the backing permission still grants a fetch.
type OrderView struct {
	Order              *domain.Order `json:"order"`
	DownloadURL        string        `json:"download_url,omitempty"`
	RemainingDownloads int           `json:"remaining_downloads"`
	PermissionExpires  *time.Time    `json:"permission_expires_at,omitempty"`
}

// PaymentService owns the order lifecycle: creation with safe-retry keys,
// vendor callbacks, lazy expiry and permission-gated download resolution.
type PaymentService struct {
	DB        *gorm.DB
	Providers payment.Registry

	OrderTTL       time.Duration
	PermissionTTL  time.Duration
	MaxDownloads   int
	IdempotencyTTL time.Duration

	// CallbackSecrets maps pay method to the shared secret used for
	// notification signature checks. A missing entry disables verification
	// for that method.
	CallbackSecrets map[string]string

	Now func() time.Time
}

// NewPaymentService wires the order service with its policy knobs.
func NewPaymentService(db *gorm.DB, providers payment.Registry, orderTTL, permissionTTL time.Duration, maxDownloads int, idemTTL time.Duration, secrets map[string]string) *PaymentService {
	return &PaymentService{
		DB:              db,
		Providers:       providers,
		OrderTTL:        orderTTL,
		PermissionTTL:   permissionTTL,
		MaxDownloads:    maxDownloads,
		IdempotencyTTL:  idemTTL,
		CallbackSecrets: secrets,
		Now:             time.Now,
	}
}

// CreateOrder prices the resource, persists a pending order and asks the
// payment vendor for a display intent. The vendor lookup happens before any
// row is written, so an unsupported method never leaves a dangling order.
func (s *PaymentService) CreateOrder(ctx context.Context, in CreateOrderInput) (*OrderWithIntent, error) {
	in.ResourceID = strings.TrimSpace(in.ResourceID)
	if in.ResourceID == "" {
		return nil, fmt.Errorf("%w: resource_id is required", ErrInvalidInput)
	}
	provider, ok := s.Providers.Lookup(in.PayMethod)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, in.PayMethod)
	}
	now := s.Now().UTC()

	if in.IdempotencyKey != "" {
		rec, err := repo.GetOrderKey(ctx, s.DB, in.UserID, in.ResourceID, in.IdempotencyKey, now)
		if err == nil {
			return s.replayOrder(ctx, provider, rec.OrderID)
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("lookup order key: %w", err)
		}
	}

	g, err := repo.GetGeneration(ctx, s.DB, in.ResourceID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: resource %s", ErrNotFound, in.ResourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("load resource: %w", err)
	}

	amount := g.PriceCents
	if amount <= 0 {
		amount = PriceFor(g)
	}

	o := &domain.Order{
		ID:           newOrderID(now),
		ResourceID:   g.ID,
		ResourceType: g.Kind,
		Amount:       amount,
		Status:       domain.OrderPending,
		PayMethod:    provider.Name(),
		UserID:       in.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiredAt:    now.Add(s.OrderTTL),
	}
	if err := repo.CreateOrder(ctx, s.DB, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if in.IdempotencyKey != "" {
		_, err := repo.CreateOrderKey(ctx, s.DB, in.UserID, in.ResourceID, in.IdempotencyKey, o.ID, s.IdempotencyTTL)
		if errors.Is(err, repo.ErrDuplicate) {
			// A concurrent retry won the key; serve its order instead.
			rec, gerr := repo.GetOrderKey(ctx, s.DB, in.UserID, in.ResourceID, in.IdempotencyKey, now)
			if gerr == nil {
				return s.replayOrder(ctx, provider, rec.OrderID)
			}
		} else if err != nil {
			return nil, fmt.Errorf("record order key: %w", err)
		}
	}

	intent, err := provider.CreateIntent(ctx, o.ID, o.Amount, orderDescription(g.Kind, amount))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return &OrderWithIntent{Order: o, Intent: intent}, nil
}

func (s *PaymentService) replayOrder(ctx context.Context, provider payment.Provider, orderID string) (*OrderWithIntent, error) {
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		return nil, fmt.Errorf("load replayed order: %w", err)
	}
	intent, err := provider.CreateIntent(ctx, o.ID, o.Amount, orderDescription(o.ResourceType, o.Amount))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return &OrderWithIntent{Order: o, Intent: intent, Replayed: true}, nil
}

// HandleCallback processes one asynchronous payment notification. The
// returned Ack must always be written to the vendor, success and failure
// alike; the error is for the caller's log only. Redelivered notifications
// and notifications for orders already out of pending are acknowledged
// without any write.
func (s *PaymentService) HandleCallback(ctx context.Context, method string, body []byte, signature string) (payment.Ack, error) {
	provider, ok := s.Providers.Lookup(method)
	if !ok {
		return payment.Ack{ContentType: "text/plain", Body: "fail"}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}

	if err := provider.Verify(body, signature, s.CallbackSecrets[provider.Name()]); err != nil {
		return provider.AckFailure("bad signature"), err
	}
	n, err := provider.ParseNotification(body)
	if err != nil {
		return provider.AckFailure("bad payload"), err
	}
	if !n.Succeeded {
		// The vendor reports a non-success state. Receipt is acknowledged;
		// the order stays pending until paid or lazily expired.
		return provider.AckSuccess(), nil
	}

	o, err := repo.GetOrder(ctx, s.DB, n.OrderID)
	if errors.Is(err, repo.ErrNotFound) {
		return provider.AckFailure("unknown order"), fmt.Errorf("%w: order %s", ErrNotFound, n.OrderID)
	}
	if err != nil {
		return provider.AckFailure("storage error"), fmt.Errorf("load order: %w", err)
	}
	if o.Terminal() {
		return provider.AckSuccess(), nil
	}

	now := s.Now().UTC()
	perm := &domain.DownloadPermission{
		ID:            uuid.NewString(),
		OrderID:       o.ID,
		ResourceID:    o.ResourceID,
		DownloadCount: 0,
		MaxDownloads:  s.MaxDownloads,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.PermissionTTL),
	}
	applied, err := repo.MarkOrderPaid(ctx, s.DB, o.ID, n.TransactionID, now, perm)
	if err != nil {
		return provider.AckFailure("storage error"), fmt.Errorf("mark order paid: %w", err)
	}
	if !applied {
		return provider.AckSuccess(), nil
	}
	log.Info().Str("order_id", o.ID).Str("method", provider.Name()).Int64("amount", o.Amount).Msg("order paid")
	return provider.AckSuccess(), nil
}

// OrderStatus reads one order, applying lazy expiry and, for paid orders,
// resolving the download URL against the permission. Each successful URL
// resolution counts one download.
func (s *PaymentService) OrderStatus(ctx context.Context, orderID string) (*OrderView, error) {
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}

	now := s.Now().UTC()
	if o.Status == domain.OrderPending && now.After(o.ExpiredAt) {
		applied, err := repo.ExpireOrder(ctx, s.DB, o.ID, now)
		if err != nil {
			return nil, fmt.Errorf("expire order: %w", err)
		}
		if applied {
			o.Status = domain.OrderExpired
			o.UpdatedAt = now
		} else {
			// Lost the race to a concurrent writer; re-read the truth.
			o, err = repo.GetOrder(ctx, s.DB, o.ID)
			if err != nil {
				return nil, fmt.Errorf("reload order: %w", err)
			}
		}
	}

	view := &OrderView{Order: o}
	if o.Status != domain.OrderPaid {
		return view, nil
	}

	perm, err := repo.GetPermission(ctx, s.DB, o.ID, o.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("load permission: %w", err)
	}
	if perm == nil || !perm.ValidAt(now) {
		return view, nil
	}
	// Resolve the resource before spending a download on it.
	g, err := repo.GetGeneration(ctx, s.DB, o.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("load resource: %w", err)
	}
	applied, err := repo.IncrementDownloadCount(ctx, s.DB, perm.ID)
	if err != nil {
		return nil, fmt.Errorf("count download: %w", err)
	}
	if !applied {
		return view, nil
	}
	view.DownloadURL = g.DownloadURL()
	view.RemainingDownloads = perm.MaxDownloads - perm.DownloadCount - 1
	view.PermissionExpires = &perm.ExpiresAt
	return view, nil
}

// ListOrders returns one page of orders, newest first, with the total count.
func (s *PaymentService) ListOrders(ctx context.Context, limit, offset int) ([]domain.Order, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := repo.ListOrders(ctx, s.DB, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	total, err := repo.CountOrders(ctx, s.DB)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	return rows, total, nil
}

// newOrderID builds a sortable order number: ORD prefix, millisecond
// timestamp, random hex suffix.
func newOrderID(now time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("ORD%d%s", now.UnixMilli(), hex.EncodeToString(b[:]))
}

func orderDescription(resourceType string, amount int64) string {
	label := "AI生成图片"
	if resourceType == domain.ResourceModel3D {
		label = "AI生成3D模型"
	}
	return zhPrinter.Sprintf("%s ¥%.2f", label, float64(amount)/100)
}
