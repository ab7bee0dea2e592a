// Package payment defines the narrow capability interface for payment
// vendors (WeChat Pay, Alipay) and a registry keyed by pay method. An
// adapter creates display-only payment intents (a pay URL and/or QR code,
// never a status change) and parses the vendor's asynchronous notification
// into a normalized form the orchestrator can act on.
//
// Acknowledgement bodies are vendor-specific: WeChat expects a JSON
// {code,message} document, Alipay a bare "success"/"fail" text. Each
// adapter renders its own.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Method names understood by the registry.
const (
	MethodWechat = "wechat"
	MethodAlipay = "alipay"
)

// Errors returned by adapters.
var (
	// ErrBadNotification indicates a notification payload that cannot be
	// parsed into the normalized form.
	ErrBadNotification = errors.New("payment: malformed notification payload")

	// ErrBadSignature indicates a notification whose signature did not
	// verify against the configured callback secret.
	ErrBadSignature = errors.New("payment: signature verification failed")
)

// Intent is the display artifact returned by CreateIntent. At least one of
// PayURL or QRCode is set; neither implies the order is paid.
type Intent struct {
	PayURL string `json:"payUrl,omitempty"`
	QRCode string `json:"qrCode,omitempty"`
}

// Notification is the normalized form of a vendor's asynchronous payment
// notice.
type Notification struct {
	OrderID       string
	TransactionID string
	Succeeded     bool
}

// Ack is a vendor-specific acknowledgement body for a notification.
type Ack struct {
	ContentType string
	Body        string
}

// Provider is the contract implemented by all payment adapters.
type Provider interface {
	// Name returns the pay method this adapter serves.
	Name() string
	// CreateIntent requests a display artifact for the order. It never
	// changes order state.
	CreateIntent(ctx context.Context, orderID string, amount int64, description string) (*Intent, error)
	// Verify checks the notification signature when a callback secret is
	// configured. An empty secret disables verification (sandbox mode).
	Verify(body []byte, signature, secret string) error
	// ParseNotification decodes the vendor payload into the normalized form.
	ParseNotification(body []byte) (*Notification, error)
	// AckSuccess renders the vendor's positive acknowledgement.
	AckSuccess() Ack
	// AckFailure renders the vendor's negative acknowledgement.
	AckFailure(msg string) Ack
}

// Registry maps pay-method names to adapters.
type Registry map[string]Provider

// NewRegistry builds a registry with the wechat and alipay adapters.
func NewRegistry() Registry {
	return Registry{
		MethodWechat: &wechatProvider{},
		MethodAlipay: &alipayProvider{},
	}
}

// Lookup returns the adapter for a pay method. Unknown methods report
// ok=false; there is no fallback payment vendor.
func (r Registry) Lookup(method string) (Provider, bool) {
	p, ok := r[strings.ToLower(strings.TrimSpace(method))]
	return p, ok
}

// verifyHMAC is the shared sandbox signature scheme: hex HMAC-SHA256 of the
// raw body under the callback secret. Real vendor schemes (platform
// certificates, RSA) slot in per adapter behind the same Verify seam.
func verifyHMAC(body []byte, signature, secret string) error {
	if secret == "" {
		return nil
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(strings.TrimSpace(signature))) {
		return ErrBadSignature
	}
	return nil
}
