package validation_test

import (
	"strings"
	"testing"

	"github.com/artpar/ritan/domain/billing"
	"github.com/artpar/ritan/domain/engine"
	"github.com/artpar/ritan/pkg/validation"
)

func TestValidateStruct_EngineRequests(t *testing.T) {
	tests := []struct {
		name      string
		kind      engine.Kind
		body      string
		wantField string
	}{
		{"scrape ok", engine.KindScrape, `{"url":"https://example.com"}`, ""},
		{"scrape bad url", engine.KindScrape, `{"url":"not a url"}`, "url"},
		{"scrape bad format", engine.KindScrape, `{"url":"https://example.com","format":"pdf"}`, "format"},
		{"pdf html only", engine.KindPDF, `{"html":"<b>x</b>"}`, ""},
		{"pdf url only", engine.KindPDF, `{"url":"https://example.com","format":"Letter"}`, ""},
		{"pdf neither", engine.KindPDF, `{}`, "html"},
		{"shot too wide", engine.KindShot, `{"url":"https://example.com","width":5000}`, "width"},
		{"shot too short", engine.KindShot, `{"url":"https://example.com","height":50}`, "height"},
		{"mail ok", engine.KindMail, `{"to":"a@b.io","subject":"hi","html":"<p>x</p>"}`, ""},
		{"mail bad to", engine.KindMail, `{"to":"nope","subject":"hi","html":"x"}`, "to"},
		{"qr empty text", engine.KindQR, `{"text":""}`, "text"},
		{"qr long text", engine.KindQR, `{"text":"` + strings.Repeat("x", 2001) + `"}`, "text"},
		{"qr color", engine.KindQR, `{"text":"hi","color":"green"}`, "color"},
		{"dns ok", engine.KindDNS, `{"domain":"example.com","type":"MX"}`, ""},
		{"dns bad type", engine.KindDNS, `{"domain":"example.com","type":"SRV"}`, "type"},
		{"dns missing domain", engine.KindDNS, `{}`, "domain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := engine.Decode(tt.kind, []byte(tt.body))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			verr := validation.ValidateStruct(req)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatalf("ValidateStruct() = nil, want error on %s", tt.wantField)
			}
			found := false
			for _, f := range verr.Fields() {
				if f.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("fields = %+v, want one for %s", verr.Fields(), tt.wantField)
			}
		})
	}
}

func TestValidateStruct_Proof(t *testing.T) {
	verr := validation.ValidateStruct(&billing.Proof{OrderID: "o", PaymentID: "p", Signature: "xyz"})
	if verr == nil {
		t.Fatal("expected non-hex signature to fail")
	}
	if verr.Fields()[0].Field != "signature" {
		t.Errorf("field = %q, want signature", verr.Fields()[0].Field)
	}
	if verr.Error() == "" {
		t.Error("expected a message")
	}
}

func TestSingle(t *testing.T) {
	verr := validation.Single("name", "max", "name is too long")
	if len(verr.Fields()) != 1 || verr.Error() != "name is too long" {
		t.Errorf("Single() = %+v", verr.Fields())
	}
}
