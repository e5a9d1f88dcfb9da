package scoring

import (
	"fmt"
	"math"
	"strings"
)

// Objective names one field of AggregateScore.
type Objective int

const (
	EventSensitivity Objective = iota
	EventPrecision
	EventF1
	EventFPRate
	SampleSensitivity
	SamplePrecision
	SampleF1
	SampleFPRate
	DetectionDelay

	numObjectives = int(DetectionDelay) + 1
)

var objectiveNames = [numObjectives]string{
	EventSensitivity:  "event_sensitivity",
	EventPrecision:    "event_precision",
	EventF1:           "event_f1",
	EventFPRate:       "event_fp_rate",
	SampleSensitivity: "sample_sensitivity",
	SamplePrecision:   "sample_precision",
	SampleF1:          "sample_f1",
	SampleFPRate:      "sample_fp_rate",
	DetectionDelay:    "detection_delay",
}

func (o Objective) String() string {
	if o < 0 || int(o) >= numObjectives {
		return fmt.Sprintf("Objective(%d)", int(o))
	}
	return objectiveNames[o]
}

// ParseObjective accepts snake_case ("event_sensitivity") or camelCase
// ("eventSensitivity", "eventFPRate") names.
func ParseObjective(s string) (Objective, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for i, name := range objectiveNames {
		if strings.ReplaceAll(name, "_", "") == key {
			return Objective(i), nil
		}
	}
	return 0, fmt.Errorf("unknown objective %q", s)
}

// MarshalText encodes the objective by its snake_case name.
func (o Objective) MarshalText() ([]byte, error) {
	if o < 0 || int(o) >= numObjectives {
		return nil, fmt.Errorf("unknown objective %d", int(o))
	}
	return []byte(objectiveNames[o]), nil
}

// UnmarshalText decodes any name ParseObjective accepts.
func (o *Objective) UnmarshalText(b []byte) error {
	v, err := ParseObjective(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Objectives lists every objective in declaration order.
func Objectives() []Objective {
	out := make([]Objective, numObjectives)
	for i := range out {
		out[i] = Objective(i)
	}
	return out
}

// Value returns the field of s named by o. Unknown objectives yield NaN.
func (s AggregateScore) Value(o Objective) float64 {
	switch o {
	case EventSensitivity:
		return s.EventSensitivity
	case EventPrecision:
		return s.EventPrecision
	case EventF1:
		return s.EventF1
	case EventFPRate:
		return s.EventFPRate
	case SampleSensitivity:
		return s.SampleSensitivity
	case SamplePrecision:
		return s.SamplePrecision
	case SampleF1:
		return s.SampleF1
	case SampleFPRate:
		return s.SampleFPRate
	case DetectionDelay:
		return s.DetectionDelay
	}
	return math.NaN()
}
