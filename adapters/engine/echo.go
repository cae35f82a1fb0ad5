package engine

import (
	"context"
	"strings"

	"github.com/artpar/ritan/domain/engine"
	"github.com/artpar/ritan/ports"
)

// Echo answers every request with the normalized payload it received.
// DNS lookups under the reserved ".invalid" TLD report not found.
type Echo struct{}

// Invoke returns the request back to the caller.
func (Echo) Invoke(ctx context.Context, req engine.Request) (ports.EngineResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.EngineResult{}, err
	}
	if dns, ok := req.(*engine.DNSRequest); ok && strings.HasSuffix(strings.TrimSuffix(dns.Domain, "."), ".invalid") {
		return ports.EngineResult{}, engine.ErrNotFound
	}
	return ports.EngineResult{
		Status: 200,
		Data: map[string]any{
			"engine":  req.Kind(),
			"request": req,
		},
	}, nil
}

// Ensure interface compliance.
var _ ports.Engine = Echo{}
