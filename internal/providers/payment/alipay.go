package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// alipayProvider simulates the Alipay page gateway. Intents carry a gateway
// redirect URL; notifications arrive either as the canonical form post or,
// in sandbox runs, as JSON with the same field names.
type alipayProvider struct{}

func (p *alipayProvider) Name() string { return MethodAlipay }

func (p *alipayProvider) CreateIntent(ctx context.Context, orderID string, amount int64, description string) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("method", "alipay.trade.page.pay")
	q.Set("out_trade_no", orderID)
	q.Set("total_amount", fmt.Sprintf("%d.%02d", amount/100, amount%100))
	q.Set("subject", description)
	return &Intent{PayURL: "https://openapi.alipay.com/gateway.do?" + q.Encode()}, nil
}

func (p *alipayProvider) Verify(body []byte, signature, secret string) error {
	return verifyHMAC(body, signature, secret)
}

func (p *alipayProvider) ParseNotification(body []byte) (*Notification, error) {
	orderID, txnID, status, err := parseAlipayFields(body)
	if err != nil {
		return nil, err
	}
	if orderID == "" {
		return nil, fmt.Errorf("%w: missing out_trade_no", ErrBadNotification)
	}
	ok := strings.EqualFold(status, "TRADE_SUCCESS") || strings.EqualFold(status, "TRADE_FINISHED")
	return &Notification{OrderID: orderID, TransactionID: txnID, Succeeded: ok}, nil
}

// parseAlipayFields accepts both the urlencoded form Alipay posts in
// production and the JSON shape used by sandbox tooling.
func parseAlipayFields(body []byte) (orderID, txnID, status string, err error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var n struct {
			OutTradeNo  string `json:"out_trade_no"`
			TradeNo     string `json:"trade_no"`
			TradeStatus string `json:"trade_status"`
		}
		if jerr := json.Unmarshal(body, &n); jerr != nil {
			return "", "", "", fmt.Errorf("%w: %v", ErrBadNotification, jerr)
		}
		return n.OutTradeNo, n.TradeNo, n.TradeStatus, nil
	}
	vals, perr := url.ParseQuery(trimmed)
	if perr != nil {
		return "", "", "", fmt.Errorf("%w: %v", ErrBadNotification, perr)
	}
	return vals.Get("out_trade_no"), vals.Get("trade_no"), vals.Get("trade_status"), nil
}

func (p *alipayProvider) AckSuccess() Ack {
	return Ack{ContentType: "text/plain", Body: "success"}
}

func (p *alipayProvider) AckFailure(msg string) Ack {
	return Ack{ContentType: "text/plain", Body: "fail"}
}
