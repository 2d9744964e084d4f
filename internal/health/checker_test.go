package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func ok(ctx context.Context) error {
	return nil
}

func failing(ctx context.Context) error {
	return errors.New("connection refused")
}

func newTestChecker(components ...Component) *Checker {
	return NewChecker("test", slog.New(slog.NewTextHandler(io.Discard, nil)), components...)
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name       string
		components []Component
		want       string
	}{
		{
			name: "all reachable",
			components: []Component{
				{Name: "database", Pinger: PingFunc(ok), Critical: true},
				{Name: "moodle", Pinger: PingFunc(ok)},
			},
			want: StatusHealthy,
		},
		{
			name: "non-critical down",
			components: []Component{
				{Name: "database", Pinger: PingFunc(ok), Critical: true},
				{Name: "moodle", Pinger: PingFunc(failing)},
			},
			want: StatusDegraded,
		},
		{
			name: "critical down",
			components: []Component{
				{Name: "database", Pinger: PingFunc(failing), Critical: true},
				{Name: "moodle", Pinger: PingFunc(ok)},
			},
			want: StatusUnhealthy,
		},
		{
			name: "critical not configured",
			components: []Component{
				{Name: "session cache", Critical: true},
			},
			want: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := newTestChecker(tt.components...).CheckHealth(context.Background())
			if status.Status != tt.want {
				t.Errorf("got %s want %s (%+v)", status.Status, tt.want, status.Components)
			}
			if len(status.Components) != len(tt.components) {
				t.Errorf("expected %d components, got %d", len(tt.components), len(status.Components))
			}
			if status.Details == nil || status.Details.Environment != "test" {
				t.Errorf("missing details: %+v", status.Details)
			}
		})
	}
}

func TestCheckReadinessIgnoresNonCritical(t *testing.T) {
	checker := newTestChecker(
		Component{Name: "database", Pinger: PingFunc(ok), Critical: true},
		Component{Name: "moodle", Pinger: PingFunc(failing)},
	)

	status := checker.CheckReadiness(context.Background())
	if status.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", status.Status)
	}
	if _, ok := status.Components["moodle"]; ok {
		t.Error("readiness should not probe non-critical components")
	}
}

func TestCheckLiveness(t *testing.T) {
	checker := newTestChecker(Component{Name: "database", Pinger: PingFunc(failing), Critical: true})

	if status := checker.CheckLiveness(context.Background()); status.Status != StatusHealthy {
		t.Errorf("liveness must not depend on components, got %s", status.Status)
	}
}

func TestCheckHealthReportsUnits(t *testing.T) {
	slow := PingFunc(func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	checker := newTestChecker(Component{Name: "moodle", Pinger: slow})
	checker.startedAt = time.Now().Add(-90 * time.Second)

	body, err := json.Marshal(checker.CheckHealth(context.Background()))
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Components map[string]struct {
			LatencyMs int64 `json:"latency_ms"`
		} `json:"components"`
		Details struct {
			UptimeSeconds int64 `json:"uptime_seconds"`
		} `json:"details"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}

	if got := decoded.Components["moodle"].LatencyMs; got < 20 || got > 1000 {
		t.Errorf("latency_ms should be in milliseconds, got %d", got)
	}
	if got := decoded.Details.UptimeSeconds; got < 90 || got > 100 {
		t.Errorf("uptime_seconds should be in seconds, got %d", got)
	}
}
