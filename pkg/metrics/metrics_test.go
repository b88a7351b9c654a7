package metrics

import (
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	r := New()
	c := r.Counter("docs_total", "Total documents")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Errorf("counter = %d, want 5", c.Value())
	}

	g := r.Gauge("queue_depth", "Depth")
	g.Set(3)
	g.Inc()
	g.Dec()
	if g.Value() != 3 {
		t.Errorf("gauge = %d, want 3", g.Value())
	}

	// Same name returns the same metric.
	if r.Counter("docs_total", "") != c {
		t.Error("counter not reused")
	}
}

func TestWithLabels(t *testing.T) {
	got := WithLabels("ingest_errors_total", "stage", "parse")
	want := `ingest_errors_total{stage="parse"}`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	// Odd pairs are ignored.
	if WithLabels("x", "only-key") != "x" {
		t.Error("odd label pairs should return bare name")
	}
}

func TestRender(t *testing.T) {
	r := New()
	r.Counter("a_total", "A help").Inc()
	r.Counter(WithLabels("b_total", "source", "medquad"), "B help").Add(2)
	h := r.Histogram("dur_seconds", "Duration", []float64{0.1, 1})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)

	out := r.Render()
	for _, want := range []string{
		"# HELP a_total A help",
		"# TYPE a_total counter",
		"a_total 1",
		`b_total{source="medquad"} 2`,
		`dur_seconds_bucket{le="0.1"} 1`,
		`dur_seconds_bucket{le="1"} 2`,
		`dur_seconds_bucket{le="+Inf"} 3`,
		"dur_seconds_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}
