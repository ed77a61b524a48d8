package metrx_test

import (
	"testing"

	"github.com/Abraxas-365/identity/pkg/metrx"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrx.Metrics
	m.GrantRequest("password", "success")
	m.PairingTokenIssued()
	m.GateResult("accepted")
	m.ConnectionSubscribed()
	m.ConnectionClosed()
}

func TestMetrics_Counts(t *testing.T) {
	m := metrx.New()
	m.GrantRequest("password", "success")
	m.GrantRequest("password", "success")
	m.GateResult("forbidden")
	m.PairingTokenIssued()

	n, err := testutil.GatherAndCount(m.Registry(), "identity_grant_requests_total")
	if err != nil || n != 1 {
		t.Fatalf("expected one grant series, got %d (%v)", n, err)
	}
	n, err = testutil.GatherAndCount(m.Registry(), "identity_registration_gate_total")
	if err != nil || n != 1 {
		t.Fatalf("expected one gate series, got %d (%v)", n, err)
	}
}
