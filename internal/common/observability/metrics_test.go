package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RecordsIntoRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	o, err := New("onboarding-flow-test", reg)
	require.NoError(t, err)
	defer o.Shutdown(context.Background())

	ctx, span := o.StartSpan(context.Background(), "flow.complete")
	assert.True(t, span.SpanContext().IsValid())
	o.RecordStepReached(ctx, "family", "name")
	o.RecordRemoteCall(ctx, "save", 20*time.Millisecond, "ok")
	span.End()

	families, err := reg.Gather()
	require.NoError(t, err)

	hasPrefix := func(prefix string) bool {
		for _, f := range families {
			if strings.HasPrefix(f.GetName(), prefix) {
				return true
			}
		}
		return false
	}
	assert.True(t, hasPrefix("flow_steps_reached"))
	assert.True(t, hasPrefix("flow_remote_duration"))
}

func TestNoop_IsSafe(t *testing.T) {
	o := Noop()
	_, span := o.StartSpan(context.Background(), "noop")
	span.End()
	o.RecordStepReached(context.Background(), "nanny", "bio")
	o.RecordRemoteCall(context.Background(), "uniqueness", time.Millisecond, "error")
	o.Shutdown(context.Background())

	var nilObs *Observability
	_, span = nilObs.StartSpan(context.Background(), "nil")
	span.End()
}
