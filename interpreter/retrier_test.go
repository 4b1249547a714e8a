package interpreter

import "testing"

func TestRetrierMatchesStatesAll(t *testing.T) {
	r := &Retrier{ErrorEquals: []string{"States.ALL"}}
	r.compile()
	if !r.Matches(CustomError("AnythingAtAll")) {
		t.Error("expected States.ALL to match any error name")
	}
}

func TestRetrierMatchesExactCustomName(t *testing.T) {
	r := &Retrier{ErrorEquals: []string{"MyApp.NotFound"}}
	r.compile()
	if !r.Matches(CustomError("MyApp.NotFound")) {
		t.Error("expected exact custom name match")
	}
	if r.Matches(CustomError("MyApp.Other")) {
		t.Error("did not expect unrelated custom name to match")
	}
}

func TestRetrierNextDelayExhaustsMaxAttempts(t *testing.T) {
	r := &Retrier{ErrorEquals: []string{"States.ALL"}, IntervalSeconds: 1, MaxAttempts: 2, BackoffRate: 2}
	r.compile()

	if _, ok := r.NextDelay(nil); !ok {
		t.Fatal("expected first attempt to be permitted")
	}
	if _, ok := r.NextDelay(nil); !ok {
		t.Fatal("expected second attempt to be permitted")
	}
	if _, ok := r.NextDelay(nil); ok {
		t.Fatal("expected MaxAttempts to be exhausted on the third call")
	}
}

func TestRetrierBackoffGrows(t *testing.T) {
	r := &Retrier{ErrorEquals: []string{"States.ALL"}, IntervalSeconds: 1, MaxAttempts: 3, BackoffRate: 2}
	r.compile()

	d1, _ := r.NextDelay(nil)
	d2, _ := r.NextDelay(nil)
	if d1 != 1 {
		t.Errorf("expected first delay of 1s, got %v", d1)
	}
	if d2 != 2 {
		t.Errorf("expected second delay of 2s, got %v", d2)
	}
}

func TestRetrierRespectsMaxDelay(t *testing.T) {
	r := &Retrier{ErrorEquals: []string{"States.ALL"}, IntervalSeconds: 10, MaxAttempts: 3, BackoffRate: 10, MaxDelaySeconds: 15}
	r.compile()

	_, _ = r.NextDelay(nil)
	d2, _ := r.NextDelay(nil)
	if d2 != 15 {
		t.Errorf("expected delay capped at 15s, got %v", d2)
	}
}

func TestFindCatcherDeclarationOrder(t *testing.T) {
	catchers := []Catcher{
		{ErrorEquals: []string{"Custom.First"}, Next: "A"},
		{ErrorEquals: []string{"States.ALL"}, Next: "B"},
	}
	for i := range catchers {
		catchers[i].compile()
	}
	c := findCatcher(catchers, CustomError("Custom.First"))
	if c == nil || c.Next != "A" {
		t.Fatalf("expected first matching catcher, got %+v", c)
	}
	c = findCatcher(catchers, CustomError("AnythingElse"))
	if c == nil || c.Next != "B" {
		t.Fatalf("expected States.ALL fallback catcher, got %+v", c)
	}
}
