package controller

import "testing"

func TestLifecycleChain(t *testing.T) {
	legal := []struct{ from, to State }{
		{Monitoring, Detecting},
		{Detecting, Intervening},
		{Intervening, Recovering},
		{Recovering, Monitoring},
		{Recovering, Escalating},
		{Escalating, Monitoring},
	}
	for _, c := range legal {
		if !canTransition(c.from, c.to) {
			t.Fatalf("%s -> %s should be legal", c.from, c.to)
		}
	}
}

func TestIllegalTransitionsRejected(t *testing.T) {
	illegal := []struct{ from, to State }{
		{Monitoring, Intervening},
		{Monitoring, Recovering},
		{Monitoring, Escalating},
		{Detecting, Monitoring},
		{Detecting, Escalating},
		{Intervening, Monitoring},
		{Intervening, Detecting},
		{Intervening, Escalating},
		{Recovering, Detecting},
		{Escalating, Detecting},
		{Escalating, Intervening},
		{Monitoring, Monitoring},
	}
	for _, c := range illegal {
		if canTransition(c.from, c.to) {
			t.Fatalf("%s -> %s should be rejected", c.from, c.to)
		}
	}
}

func TestSessionTransitionKeepsStateOnRejection(t *testing.T) {
	s := NewTaskSession()
	if s.State != Monitoring {
		t.Fatalf("fresh session in %s", s.State)
	}

	if err := s.transition(Escalating); err == nil {
		t.Fatal("monitoring -> escalating accepted")
	}
	if s.State != Monitoring {
		t.Fatalf("rejected transition moved session to %s", s.State)
	}

	if err := s.transition(Detecting); err != nil {
		t.Fatal(err)
	}
	if s.State != Detecting {
		t.Fatalf("session in %s, want detecting", s.State)
	}
}

func TestStateString(t *testing.T) {
	if Monitoring.String() != "monitoring" || Escalating.String() != "escalating" {
		t.Fatal("unexpected state names")
	}
	if State(42).String() != "state(42)" {
		t.Fatalf("out-of-range state name: %s", State(42))
	}
}
