package app_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	adapterengine "github.com/artpar/ritan/adapters/engine"
	"github.com/artpar/ritan/domain/engine"
	"github.com/artpar/ritan/domain/gateway"
	"github.com/artpar/ritan/domain/quota"
	"github.com/artpar/ritan/ports"
)

func call(kind, body, userID string) gateway.Call {
	return gateway.Call{
		Engine:   kind,
		Endpoint: "/v1/" + kind,
		Method:   http.MethodPost,
		Body:     []byte(body),
		RemoteIP: "10.0.0.1",
		Auth:     gateway.AuthContext{UserID: userID, KeyID: "key-1", Method: "api_key"},
	}
}

func TestGatewayService_Success(t *testing.T) {
	eng := &countingEngine{}
	svc, stores := newTestServices(map[engine.Kind]ports.Engine{engine.KindQR: eng}, nil)

	res := svc.gateway.Handle(context.Background(), call("qr", `{"text":"hello"}`, "user-1"))

	if res.Err != nil {
		t.Fatalf("unexpected error %+v", res.Err)
	}
	if res.Status != 200 || res.CreditsUsed != 1 {
		t.Errorf("status = %d credits = %d", res.Status, res.CreditsUsed)
	}
	if eng.calls.Load() != 1 {
		t.Errorf("engine calls = %d, want 1", eng.calls.Load())
	}

	records := stores.recorder.Drain()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	r := records[0]
	if r.UserID != "user-1" || r.KeyID != "key-1" || r.Engine != "qr" || r.StatusCode != 200 || r.Cost != 1 {
		t.Errorf("record = %+v", r)
	}
	if r.Endpoint != "/v1/qr" || r.SourceIP != "10.0.0.1" {
		t.Errorf("record endpoint/ip = %s %s", r.Endpoint, r.SourceIP)
	}
}

func TestGatewayService_ValidationFailure(t *testing.T) {
	tests := []struct {
		name string
		kind string
		body string
	}{
		{"bad json", "qr", `{"text":`},
		{"unknown field", "qr", `{"text":"x","extra":1}`},
		{"missing required", "qr", `{}`},
		{"bad url", "scrape", `{"url":"not a url"}`},
		{"bad enum", "dns", `{"domain":"example.com","type":"AAAA"}`},
		{"pdf needs html or url", "pdf", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &countingEngine{}
			engines := map[engine.Kind]ports.Engine{}
			for _, k := range engine.Kinds() {
				engines[k] = eng
			}
			svc, stores := newTestServices(engines, nil)

			res := svc.gateway.Handle(context.Background(), call(tt.kind, tt.body, "user-1"))

			if res.Err == nil || res.Err.Code != "validation_failed" || res.Status != 400 {
				t.Fatalf("result = %+v, want 400 validation_failed", res)
			}
			if res.Err.Details == nil {
				t.Error("validation error has no details")
			}
			if eng.calls.Load() != 0 {
				t.Error("engine invoked for an invalid request")
			}
			records := stores.recorder.Drain()
			if len(records) != 1 || records[0].Cost != 0 || records[0].StatusCode != 400 {
				t.Errorf("records = %+v, want one zero-cost 400", records)
			}
		})
	}
}

func TestGatewayService_QuotaExceeded(t *testing.T) {
	ctx := context.Background()
	eng := &countingEngine{}
	svc, stores := newTestServices(map[engine.Kind]ports.Engine{engine.KindPDF: eng}, nil)
	period, _ := quota.PeriodBounds(baseTime)

	for i := 0; i < 100; i++ {
		stores.counters.IncrementIfBelow(ctx, "user-1", period, 100)
	}

	res := svc.gateway.Handle(ctx, call("pdf", `{"html":"<h1>x</h1>"}`, "user-1"))

	if res.Status != 429 || res.Err == nil || res.Err.Code != "quota_exceeded" {
		t.Fatalf("result = %+v, want 429 quota_exceeded", res)
	}
	details, ok := res.Err.Details.(map[string]any)
	if !ok || details["limit"] != int64(100) || details["current"] != int64(100) {
		t.Errorf("details = %#v", res.Err.Details)
	}
	if eng.calls.Load() != 0 {
		t.Error("engine invoked after denial")
	}
	if got, _ := stores.counters.Get(ctx, "user-1", period); got != 100 {
		t.Errorf("counter = %d, want 100", got)
	}
	records := stores.recorder.Drain()
	if len(records) != 1 || records[0].Cost != 0 || records[0].StatusCode != 429 {
		t.Errorf("records = %+v, want one zero-cost 429", records)
	}
}

func TestGatewayService_AdmissionOnlyForFlaggedEngines(t *testing.T) {
	ctx := context.Background()
	engines := map[engine.Kind]ports.Engine{
		engine.KindQR:  &countingEngine{},
		engine.KindPDF: &countingEngine{},
	}
	svc, stores := newTestServices(engines, quota.Ceilings{quota.TierFree: 1})
	period, _ := quota.PeriodBounds(baseTime)

	for i := 0; i < 3; i++ {
		if res := svc.gateway.Handle(ctx, call("qr", `{"text":"x"}`, "user-1")); res.Err != nil {
			t.Fatalf("qr call %d failed: %+v", i, res.Err)
		}
	}
	if got, _ := stores.counters.Get(ctx, "user-1", period); got != 0 {
		t.Errorf("qr calls consumed admission: counter = %d", got)
	}

	if res := svc.gateway.Handle(ctx, call("pdf", `{"url":"https://example.com"}`, "user-1")); res.Err != nil {
		t.Fatalf("first pdf failed: %+v", res.Err)
	}
	if res := svc.gateway.Handle(ctx, call("pdf", `{"url":"https://example.com"}`, "user-1")); res.Status != 429 {
		t.Errorf("second pdf status = %d, want 429", res.Status)
	}

	// Making qr admission-controlled takes effect immediately.
	specs := engine.DefaultSpecs()
	qr := specs[engine.KindQR]
	qr.RequiresAdmission = true
	svc.gateway.UpdateSpecs(map[engine.Kind]engine.Spec{engine.KindQR: qr})
	if res := svc.gateway.Handle(ctx, call("qr", `{"text":"x"}`, "user-1")); res.Status != 429 {
		t.Errorf("qr status after update = %d, want 429", res.Status)
	}
}

func TestGatewayService_EngineFailures(t *testing.T) {
	tests := []struct {
		name        string
		engine      *countingEngine
		wantStatus  int
		wantCode    string
		wantCredits int
	}{
		{"transport error", &countingEngine{err: errors.New("connection refused")}, 502, "engine_error", 1},
		{"not found", &countingEngine{err: engine.ErrNotFound}, 404, "not_found", 1},
		{"engine rejects", &countingEngine{result: ports.EngineResult{Status: 422, Data: "bad"}}, 422, "engine_error", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, stores := newTestServices(map[engine.Kind]ports.Engine{engine.KindDNS: tt.engine}, nil)

			res := svc.gateway.Handle(context.Background(), call("dns", `{"domain":"example.com"}`, "user-1"))

			if res.Status != tt.wantStatus || res.Err == nil || res.Err.Code != tt.wantCode {
				t.Fatalf("result = %+v, want %d %s", res, tt.wantStatus, tt.wantCode)
			}
			records := stores.recorder.Drain()
			if len(records) != 1 {
				t.Fatalf("records = %d, want exactly 1", len(records))
			}
			if records[0].StatusCode != tt.wantStatus || records[0].Cost != tt.wantCredits {
				t.Errorf("record = %+v", records[0])
			}
		})
	}
}

func TestGatewayService_EchoEngine(t *testing.T) {
	engines := map[engine.Kind]ports.Engine{}
	for _, k := range engine.Kinds() {
		engines[k] = adapterengine.Echo{}
	}
	svc, stores := newTestServices(engines, nil)
	ctx := context.Background()

	res := svc.gateway.Handle(ctx, call("dns", `{"domain":"nothing.invalid"}`, "user-1"))
	if res.Status != 404 {
		t.Errorf("status = %d, want 404", res.Status)
	}

	res = svc.gateway.Handle(ctx, call("shot", `{"url":"https://example.com"}`, "user-1"))
	if res.Status != 200 || res.CreditsUsed != 3 {
		t.Errorf("shot = %d credits %d", res.Status, res.CreditsUsed)
	}
	data := res.Data.(map[string]any)
	req := data["request"].(*engine.ShotRequest)
	if req.Width != 1920 || req.Height != 1080 {
		t.Errorf("defaults not applied: %+v", req)
	}

	if n := len(stores.recorder.Drain()); n != 2 {
		t.Errorf("records = %d, want 2", n)
	}
}

func TestGatewayService_UnknownEngine(t *testing.T) {
	svc, stores := newTestServices(nil, nil)

	res := svc.gateway.Handle(context.Background(), call("fax", `{}`, "user-1"))
	if res.Status != 404 || res.Err == nil {
		t.Errorf("result = %+v, want 404", res)
	}
	if n := len(stores.recorder.Drain()); n != 0 {
		t.Errorf("records = %d, want 0 for unroutable calls", n)
	}
}

func TestGatewayService_UnconfiguredEngine(t *testing.T) {
	svc, stores := newTestServices(map[engine.Kind]ports.Engine{}, nil)

	res := svc.gateway.Handle(context.Background(), call("mail", `{"to":"a@example.com","subject":"s","html":"<p>x</p>"}`, "user-1"))
	if res.Status != 502 {
		t.Errorf("status = %d, want 502", res.Status)
	}
	records := stores.recorder.Drain()
	if len(records) != 1 || records[0].Cost != 0 {
		t.Errorf("records = %+v, want one zero-cost record", records)
	}
}
