package interpreter

import (
	"math"
	"math/rand"
)

// Retrier is one entry of a state's Retry array. ErrorEquals is matched in
// declaration order; the first Retrier whose ErrorEquals matches the raised
// ErrorName owns the retry decision for that failure.
type Retrier struct {
	ErrorEquals     []string `json:"ErrorEquals" validate:"required,min=1"`
	IntervalSeconds int      `json:"IntervalSeconds,omitempty" default:"1" validate:"min=1"`
	MaxAttempts     int      `json:"MaxAttempts,omitempty" default:"3" validate:"min=0"`
	BackoffRate     float64  `json:"BackoffRate,omitempty" default:"2.0" validate:"min=1"`
	MaxDelaySeconds int      `json:"MaxDelaySeconds,omitempty" validate:"min=0"`
	JitterStrategy  string   `json:"JitterStrategy,omitempty" validate:"omitempty,eq=FULL"`

	errorNames []ErrorName
	attempt    int
}

func (r *Retrier) compile() {
	r.errorNames = make([]ErrorName, len(r.ErrorEquals))
	for i, s := range r.ErrorEquals {
		r.errorNames[i] = CustomError(s)
	}
}

// Matches reports whether name is covered by this Retrier's ErrorEquals.
func (r *Retrier) Matches(name ErrorName) bool {
	for _, e := range r.errorNames {
		if Matches(e, name) {
			return true
		}
	}
	return false
}

// NextDelay returns the delay to wait before the next attempt and whether
// another attempt is still permitted at all (MaxAttempts not yet
// exhausted). It increments this Retrier's own attempt counter as a side
// effect — Retriers track attempts independently of one another, per
// states-language.net's per-Retrier retry semantics.
func (r *Retrier) NextDelay(rng *rand.Rand) (delaySeconds float64, ok bool) {
	if r.attempt >= r.MaxAttempts {
		return 0, false
	}
	delay := float64(r.IntervalSeconds) * math.Pow(r.BackoffRate, float64(r.attempt))
	if r.MaxDelaySeconds > 0 && delay > float64(r.MaxDelaySeconds) {
		delay = float64(r.MaxDelaySeconds)
	}
	r.attempt++
	if r.JitterStrategy == "FULL" {
		if rng == nil {
			rng = rand.New(rand.NewSource(1))
		}
		delay = rng.Float64() * delay
	}
	return delay, true
}

// Catcher is one entry of a state's Catch array.
type Catcher struct {
	ErrorEquals []string   `json:"ErrorEquals" validate:"required,min=1"`
	ResultPath  string     `json:"ResultPath,omitempty" validate:"omitempty,jsonpath"`
	Next        string     `json:"Next" validate:"required"`

	errorNames []ErrorName
}

func (c *Catcher) compile() {
	c.errorNames = make([]ErrorName, len(c.ErrorEquals))
	for i, s := range c.ErrorEquals {
		c.errorNames[i] = CustomError(s)
	}
}

// Matches reports whether name is covered by this Catcher's ErrorEquals.
func (c *Catcher) Matches(name ErrorName) bool {
	for _, e := range c.errorNames {
		if Matches(e, name) {
			return true
		}
	}
	return false
}

// findCatcher returns the first Catcher (in declaration order) whose
// ErrorEquals matches name, or nil.
func findCatcher(catchers []Catcher, name ErrorName) *Catcher {
	for i := range catchers {
		if catchers[i].Matches(name) {
			return &catchers[i]
		}
	}
	return nil
}

// findRetrier returns the first Retrier (in declaration order) whose
// ErrorEquals matches name, or nil.
func findRetrier(retriers []Retrier, name ErrorName) *Retrier {
	for i := range retriers {
		if retriers[i].Matches(name) {
			return &retriers[i]
		}
	}
	return nil
}
