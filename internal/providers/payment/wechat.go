package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// wechatProvider simulates WeChat Pay Native. Intents carry a weixin://
// pay URL plus a QR rendering of it; notifications are the JSON shape of
// the v3 transaction notice.
type wechatProvider struct{}

func (p *wechatProvider) Name() string { return MethodWechat }

func (p *wechatProvider) CreateIntent(ctx context.Context, orderID string, amount int64, description string) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payURL := fmt.Sprintf("weixin://wxpay/bizpayurl?pr=%s", orderID)
	qr := "https://api.qrserver.com/v1/create-qr-code/?size=300x300&data=" + url.QueryEscape(payURL)
	return &Intent{PayURL: payURL, QRCode: qr}, nil
}

func (p *wechatProvider) Verify(body []byte, signature, secret string) error {
	return verifyHMAC(body, signature, secret)
}

// wechatNotice mirrors the fields of the v3 payment notice this service
// cares about.
type wechatNotice struct {
	OutTradeNo    string `json:"out_trade_no"`
	TransactionID string `json:"transaction_id"`
	TradeState    string `json:"trade_state"`
}

func (p *wechatProvider) ParseNotification(body []byte) (*Notification, error) {
	var n wechatNotice
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadNotification, err)
	}
	if n.OutTradeNo == "" {
		return nil, fmt.Errorf("%w: missing out_trade_no", ErrBadNotification)
	}
	return &Notification{
		OrderID:       n.OutTradeNo,
		TransactionID: n.TransactionID,
		Succeeded:     strings.EqualFold(n.TradeState, "SUCCESS"),
	}, nil
}

func (p *wechatProvider) AckSuccess() Ack {
	return Ack{ContentType: "application/json", Body: `{"code":"SUCCESS","message":"成功"}`}
}

func (p *wechatProvider) AckFailure(msg string) Ack {
	b, _ := json.Marshal(map[string]string{"code": "FAIL", "message": msg})
	return Ack{ContentType: "application/json", Body: string(b)}
}
