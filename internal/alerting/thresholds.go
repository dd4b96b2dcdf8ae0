package alerting

import (
	"fmt"
	"math"
	"strings"
)

// Direction restricts alerts to runs that moved a particular way.
type Direction int

const (
	DirectionAny Direction = iota
	DirectionUp
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "any"
	}
}

// ParseDirection accepts any, up or down (case-insensitive). Empty means any.
func ParseDirection(v string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "any":
		return DirectionAny, nil
	case "up":
		return DirectionUp, nil
	case "down":
		return DirectionDown, nil
	default:
		return DirectionAny, fmt.Errorf("unknown direction %q (want any, up or down)", v)
	}
}

// Thresholds configure the alert gate. Nil percentages are not applied.
type Thresholds struct {
	changePct     *float64
	volatilityPct *float64
	direction     Direction
}

// NewThresholds validates and freezes gate settings.
func NewThresholds(changePct, volatilityPct *float64, direction Direction) (Thresholds, error) {
	if err := checkPct("change threshold", changePct); err != nil {
		return Thresholds{}, err
	}
	if err := checkPct("volatility threshold", volatilityPct); err != nil {
		return Thresholds{}, err
	}
	if direction < DirectionAny || direction > DirectionDown {
		return Thresholds{}, fmt.Errorf("invalid direction %d", direction)
	}
	return Thresholds{
		changePct:     copyPct(changePct),
		volatilityPct: copyPct(volatilityPct),
		direction:     direction,
	}, nil
}

func checkPct(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return fmt.Errorf("%s must be a non-negative number, got %v", name, *v)
	}
	return nil
}

func copyPct(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ChangePct returns the change threshold and whether it is set.
func (t Thresholds) ChangePct() (float64, bool) {
	if t.changePct == nil {
		return 0, false
	}
	return *t.changePct, true
}

// VolatilityPct returns the volatility threshold and whether it is set.
func (t Thresholds) VolatilityPct() (float64, bool) {
	if t.volatilityPct == nil {
		return 0, false
	}
	return *t.volatilityPct, true
}

// Direction returns the direction filter.
func (t Thresholds) Direction() Direction {
	return t.direction
}

func (t Thresholds) String() string {
	parts := make([]string, 0, 3)
	if v, ok := t.ChangePct(); ok {
		parts = append(parts, fmt.Sprintf("change>=%g%%", v))
	}
	if v, ok := t.VolatilityPct(); ok {
		parts = append(parts, fmt.Sprintf("volatility>=%g%%", v))
	}
	if t.direction != DirectionAny {
		parts = append(parts, "direction="+t.direction.String())
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
