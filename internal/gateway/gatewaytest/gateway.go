package gatewaytest

import (
	"testing"

	"go.uber.org/zap"

	"github.com/oshokin/secpi-console/internal/flash"
	"github.com/oshokin/secpi-console/internal/gateway"
)

// NewGateway wires a gateway to a fresh fake transport and a quiet flash center.
func NewGateway(t testing.TB) (*gateway.Gateway, *Transport, *flash.Center) {
	t.Helper()

	transport := NewTransport()
	center := flash.NewCenter(flash.WithLogger(zap.NewNop().Sugar()))

	gw, err := gateway.New(transport, center)
	if err != nil {
		t.Fatalf("gatewaytest: create gateway: %v", err)
	}

	return gw, transport, center
}

// Severities lists the severities of the live messages in order.
func Severities(center *flash.Center) []flash.Severity {
	messages := center.Messages()

	result := make([]flash.Severity, 0, len(messages))
	for _, m := range messages {
		result = append(result, m.Severity)
	}

	return result
}

// Texts lists the texts of the live messages in order.
func Texts(center *flash.Center) []string {
	messages := center.Messages()

	result := make([]string, 0, len(messages))
	for _, m := range messages {
		result = append(result, m.Text)
	}

	return result
}
