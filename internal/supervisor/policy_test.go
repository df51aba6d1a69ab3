package supervisor_test

import (
	"testing"
	"time"

	"github.com/pedrox86lopes/MagnetStream/internal/supervisor"
)

func TestShouldAbortOnlyAfterDeadlineWithoutConnection(t *testing.T) {
	policy := supervisor.TimeoutPolicy{ConnectDeadline: 60 * time.Second}
	started := time.Now()

	cases := []struct {
		elapsed   time.Duration
		connected bool
		want      bool
	}{
		{0, false, false},
		{59 * time.Second, false, false},
		{60 * time.Second, false, true},
		{61 * time.Second, false, true},
		{10 * time.Minute, false, true},
		{60 * time.Second, true, false},
		{61 * time.Second, true, false},
		{10 * time.Minute, true, false},
	}
	for _, tc := range cases {
		got := policy.ShouldAbort(started, started.Add(tc.elapsed), tc.connected)
		if got != tc.want {
			t.Fatalf("ShouldAbort(elapsed=%s connected=%v) = %v, want %v", tc.elapsed, tc.connected, got, tc.want)
		}
	}
}

func TestZeroDeadlineNeverAborts(t *testing.T) {
	policy := supervisor.TimeoutPolicy{}
	started := time.Now()
	if policy.ShouldAbort(started, started.Add(24*time.Hour), false) {
		t.Fatal("expected disabled policy to never abort")
	}
}
