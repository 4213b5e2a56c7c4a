package movement

import (
	"MultiView/keys"
	"errors"
	"fmt"
	"time"
)

// Policy holds the timing and probability constants of the movement macro.
type Policy struct {
	Name   string      `yaml:"-"`
	Layout keys.Layout `yaml:"-"`

	// Substitution is the chance a pick containing forward is replaced by a
	// pure backward move followed by a forward correction.
	Substitution float64       `yaml:"substitution"`
	HoldMin      time.Duration `yaml:"holdMin"`
	HoldMax      time.Duration `yaml:"holdMax"`
	GapMin       time.Duration `yaml:"gapMin"`
	GapMax       time.Duration `yaml:"gapMax"`
	InflateMin   time.Duration `yaml:"inflateMin"`
	InflateMax   time.Duration `yaml:"inflateMax"`
	// CorrectionDelay is the pause between the backward release and the
	// correction press.
	CorrectionDelay time.Duration `yaml:"correctionDelay"`
	// CorrectionExtra is added to the move hold to get the correction hold.
	CorrectionExtra time.Duration `yaml:"correctionExtra"`

	Jumps       int           `yaml:"jumps"`
	JumpSpacing time.Duration `yaml:"jumpSpacing"`
	JumpHold    time.Duration `yaml:"jumpHold"`
	Settle      time.Duration `yaml:"settle"`
	Recovery    time.Duration `yaml:"recovery"`
	History     int           `yaml:"history"`
}

const (
	PolicySynchronized = "synchronized"
	PolicySimple       = "simple"
)

func base(name string) Policy {
	return Policy{
		Name:            name,
		Layout:          keys.QWERTY,
		InflateMin:      200 * time.Millisecond,
		InflateMax:      500 * time.Millisecond,
		CorrectionDelay: 30 * time.Millisecond,
		CorrectionExtra: 100 * time.Millisecond,
		Jumps:           3,
		Settle:          800 * time.Millisecond,
		Recovery:        2000 * time.Millisecond,
		History:         5,
	}
}

// Synchronized is the policy used when views are driven as a group.
func Synchronized() Policy {
	p := base(PolicySynchronized)
	p.Substitution = 0.5
	p.HoldMin, p.HoldMax = 50*time.Millisecond, 1500*time.Millisecond
	p.GapMin, p.GapMax = 500*time.Millisecond, 1000*time.Millisecond
	p.JumpSpacing = 500 * time.Millisecond
	p.JumpHold = 200 * time.Millisecond
	return p
}

// Simple is the lighter policy with longer holds and rarer substitutions.
func Simple() Policy {
	p := base(PolicySimple)
	p.Substitution = 0.2
	p.HoldMin, p.HoldMax = 500*time.Millisecond, 1750*time.Millisecond
	p.GapMin, p.GapMax = 500*time.Millisecond, 1250*time.Millisecond
	p.JumpSpacing = 200 * time.Millisecond
	p.JumpHold = 100 * time.Millisecond
	return p
}

// PolicyByName returns a built-in policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", PolicySynchronized:
		return Synchronized(), nil
	case PolicySimple:
		return Simple(), nil
	}
	return Policy{}, fmt.Errorf("unknown movement policy %q", name)
}

// Validate checks ranges and counts.
func (p Policy) Validate() error {
	var errs []error
	if p.Substitution < 0 || p.Substitution > 1 {
		errs = append(errs, fmt.Errorf("substitution %v outside [0,1]", p.Substitution))
	}
	for _, r := range []struct {
		name     string
		min, max time.Duration
	}{
		{"hold", p.HoldMin, p.HoldMax},
		{"gap", p.GapMin, p.GapMax},
		{"inflate", p.InflateMin, p.InflateMax},
	} {
		if r.min < 0 || r.max < r.min {
			errs = append(errs, fmt.Errorf("%s range %s..%s", r.name, r.min, r.max))
		}
	}
	if p.Jumps < 1 {
		errs = append(errs, fmt.Errorf("jumps %d, need at least one per burst", p.Jumps))
	}
	if p.History < 1 {
		errs = append(errs, fmt.Errorf("history %d", p.History))
	}
	if p.Recovery <= 0 {
		errs = append(errs, errors.New("recovery delay must be positive"))
	}
	if p.Layout.Forward == "" || p.Layout.Back == "" || p.Layout.Left == "" || p.Layout.Right == "" || p.Layout.Jump == "" {
		errs = append(errs, errors.New("layout is incomplete"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("policy %s: %w", p.Name, err)
	}
	return nil
}
