// Package engine defines the request schemas of the external engines and
// their metering attributes. Engines themselves live behind ports.Engine.
package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Kind names an engine.
type Kind string

const (
	KindScrape Kind = "scrape"
	KindPDF    Kind = "pdf"
	KindShot   Kind = "shot"
	KindMail   Kind = "mail"
	KindQR     Kind = "qr"
	KindDNS    Kind = "dns"
)

// Errors shared by engine adapters and the gateway service.
var (
	ErrUnknownKind = errors.New("unknown engine")
	ErrNotFound    = errors.New("engine found nothing for the request")
	ErrBadBody     = errors.New("request body is not valid JSON")
)

// Spec describes how calls to an engine are metered (value type).
type Spec struct {
	Kind              Kind
	Cost              int
	RequiresAdmission bool
}

// DefaultSpecs returns the built-in metering table.
func DefaultSpecs() map[Kind]Spec {
	return map[Kind]Spec{
		KindScrape: {Kind: KindScrape, Cost: 1},
		KindPDF:    {Kind: KindPDF, Cost: 5, RequiresAdmission: true},
		KindShot:   {Kind: KindShot, Cost: 3},
		KindMail:   {Kind: KindMail, Cost: 2},
		KindQR:     {Kind: KindQR, Cost: 1},
		KindDNS:    {Kind: KindDNS, Cost: 1},
	}
}

// Kinds returns every known engine kind in a stable order.
func Kinds() []Kind {
	specs := DefaultSpecs()
	out := make([]Kind, 0, len(specs))
	for k := range specs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseKind validates an engine name from a route.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := DefaultSpecs()[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Request is the closed set of engine payloads.
type Request interface {
	Kind() Kind
	applyDefaults()
}

// Decode parses a JSON body into the payload type for kind and fills
// defaults. Unknown fields are rejected. Field constraints are checked
// separately against the struct tags.
func Decode(kind Kind, body []byte) (Request, error) {
	var req Request
	switch kind {
	case KindScrape:
		req = &ScrapeRequest{}
	case KindPDF:
		req = &PDFRequest{}
	case KindShot:
		req = &ShotRequest{}
	case KindMail:
		req = &MailRequest{}
	case KindQR:
		req = &QRRequest{}
	case KindDNS:
		req = &DNSRequest{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	req.applyDefaults()
	return req, nil
}
