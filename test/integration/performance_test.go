package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/iwvelando/loan-formulas/pkg/formula"
	"github.com/iwvelando/loan-formulas/pkg/loans"
	"github.com/iwvelando/loan-formulas/pkg/testutil"
)

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}

// TestPerformance keeps a typical simulation well inside interactive latency.
func TestPerformance(t *testing.T) {
	sim, closeFn := newSimulator(t)
	defer closeFn()
	values := map[string]interface{}{"monto": 250000, "tasa": 9.5, "plazo": 360}

	start := time.Now()
	const runs = 200
	for i := 0; i < runs; i++ {
		if _, err := sim.SimulateByID(context.Background(), "cuota-fija", values); err != nil {
			t.Fatalf("SimulateByID failed: %v", err)
		}
	}
	elapsed := time.Since(start)

	t.Logf("%d simulations of 360 periods in %v", runs, elapsed)
	if elapsed > 5*time.Second {
		t.Errorf("simulations too slow: %v", elapsed)
	}
}

// TestDataConsistency checks that repeated runs give identical output.
func TestDataConsistency(t *testing.T) {
	values := map[string]interface{}{"amount": 80000, "rate": 7.25, "term": 48}
	f := testutil.AnnuityFormula()

	first, err := f.Evaluate(values)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	firstRows, err := loans.Schedule(80000, 7.25, 48)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		again, err := f.Evaluate(values)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if again.Value != first.Value {
			t.Fatalf("run %d: value %v differs from %v", i, again.Value, first.Value)
		}

		rows, err := loans.Schedule(80000, 7.25, 48)
		if err != nil {
			t.Fatalf("Schedule failed: %v", err)
		}
		for j := range rows {
			if rows[j] != firstRows[j] {
				t.Fatalf("run %d: row %d differs", i, j+1)
			}
		}
	}
}

func BenchmarkEvaluate(b *testing.B) {
	values := map[string]interface{}{"monto": 100000, "tasa": 12, "plazo": 12}
	for i := 0; i < b.N; i++ {
		if _, err := formula.Evaluate(testutil.AnnuityExpression, values); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompiledEval(b *testing.B) {
	program, err := formula.Compile(testutil.AnnuityExpression)
	if err != nil {
		b.Fatal(err)
	}
	values := map[string]interface{}{"monto": 100000.0, "tasa": 12.0, "plazo": 12.0}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := program.Eval(values); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSchedule(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := loans.Schedule(250000, 9.5, 360); err != nil {
			b.Fatal(err)
		}
	}
}
