package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	if p, ok := r.Lookup("wechat"); !ok || p.Name() != MethodWechat {
		t.Fatalf("Lookup(wechat) = %v, %v", p, ok)
	}
	if p, ok := r.Lookup(" Alipay "); !ok || p.Name() != MethodAlipay {
		t.Fatalf("lookup should trim and lowercase, got %v, %v", p, ok)
	}
	if _, ok := r.Lookup("paypal"); ok {
		t.Fatalf("unknown method must not resolve")
	}
}

func TestWechat_CreateIntent(t *testing.T) {
	r := NewRegistry()
	p, _ := r.Lookup(MethodWechat)

	intent, err := p.CreateIntent(context.Background(), "ORD123", 500, "test")
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if !strings.HasPrefix(intent.PayURL, "weixin://") {
		t.Fatalf("pay URL: %q", intent.PayURL)
	}
	if !strings.Contains(intent.QRCode, "qrserver") {
		t.Fatalf("qr code: %q", intent.QRCode)
	}
}

func TestWechat_ParseNotification(t *testing.T) {
	r := NewRegistry()
	p, _ := r.Lookup(MethodWechat)

	n, err := p.ParseNotification([]byte(`{"out_trade_no":"ORD1","transaction_id":"wx-9","trade_state":"SUCCESS"}`))
	if err != nil {
		t.Fatalf("ParseNotification: %v", err)
	}
	if n.OrderID != "ORD1" || n.TransactionID != "wx-9" || !n.Succeeded {
		t.Fatalf("unexpected notification: %+v", n)
	}

	n, err = p.ParseNotification([]byte(`{"out_trade_no":"ORD1","trade_state":"CLOSED"}`))
	if err != nil || n.Succeeded {
		t.Fatalf("CLOSED state must not be success: %+v err=%v", n, err)
	}

	if _, err := p.ParseNotification([]byte(`{"trade_state":"SUCCESS"}`)); !errors.Is(err, ErrBadNotification) {
		t.Fatalf("missing out_trade_no: %v", err)
	}
	if _, err := p.ParseNotification([]byte(`not json`)); !errors.Is(err, ErrBadNotification) {
		t.Fatalf("bad json: %v", err)
	}
}

func TestWechat_Acks(t *testing.T) {
	r := NewRegistry()
	p, _ := r.Lookup(MethodWechat)

	okAck := p.AckSuccess()
	if okAck.ContentType != "application/json" || !strings.Contains(okAck.Body, `"SUCCESS"`) {
		t.Fatalf("success ack: %+v", okAck)
	}
	failAck := p.AckFailure("nope")
	if !strings.Contains(failAck.Body, `"FAIL"`) || !strings.Contains(failAck.Body, "nope") {
		t.Fatalf("failure ack: %+v", failAck)
	}
}

func TestAlipay_ParseNotification_FormAndJSON(t *testing.T) {
	r := NewRegistry()
	p, _ := r.Lookup(MethodAlipay)

	form := "out_trade_no=ORD2&trade_no=ali-7&trade_status=TRADE_SUCCESS"
	n, err := p.ParseNotification([]byte(form))
	if err != nil {
		t.Fatalf("form notification: %v", err)
	}
	if n.OrderID != "ORD2" || n.TransactionID != "ali-7" || !n.Succeeded {
		t.Fatalf("unexpected notification: %+v", n)
	}

	n, err = p.ParseNotification([]byte(`{"out_trade_no":"ORD3","trade_no":"ali-8","trade_status":"TRADE_FINISHED"}`))
	if err != nil || !n.Succeeded {
		t.Fatalf("json TRADE_FINISHED: %+v err=%v", n, err)
	}

	n, err = p.ParseNotification([]byte("out_trade_no=ORD4&trade_status=WAIT_BUYER_PAY"))
	if err != nil || n.Succeeded {
		t.Fatalf("WAIT_BUYER_PAY must not be success: %+v err=%v", n, err)
	}

	if _, err := p.ParseNotification([]byte("trade_status=TRADE_SUCCESS")); !errors.Is(err, ErrBadNotification) {
		t.Fatalf("missing out_trade_no: %v", err)
	}
}

func TestAlipay_IntentAndAcks(t *testing.T) {
	r := NewRegistry()
	p, _ := r.Lookup(MethodAlipay)

	intent, err := p.CreateIntent(context.Background(), "ORD5", 1234, "商品")
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if !strings.Contains(intent.PayURL, "openapi.alipay.com") {
		t.Fatalf("gateway URL: %q", intent.PayURL)
	}
	if !strings.Contains(intent.PayURL, "total_amount=12.34") {
		t.Fatalf("amount must be formatted as yuan: %q", intent.PayURL)
	}

	if ack := p.AckSuccess(); ack.Body != "success" {
		t.Fatalf("success ack: %+v", ack)
	}
	if ack := p.AckFailure("x"); ack.Body != "fail" {
		t.Fatalf("failure ack: %+v", ack)
	}
}

func TestVerify_HMAC(t *testing.T) {
	r := NewRegistry()
	p, _ := r.Lookup(MethodWechat)

	body := []byte(`{"out_trade_no":"ORD1"}`)
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	if err := p.Verify(body, sig, "secret"); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := p.Verify(body, sig, "other-secret"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("wrong secret: %v", err)
	}
	if err := p.Verify(body, "deadbeef", "secret"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("wrong signature: %v", err)
	}
	// Empty secret disables verification.
	if err := p.Verify(body, "", ""); err != nil {
		t.Fatalf("empty secret should accept: %v", err)
	}
}
