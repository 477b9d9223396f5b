package advancement

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/KirkDiggler/rpg-toolkit/dice"
)

// Scale value type tags
const (
	ScaleTypeString   = "string"
	ScaleTypeNumber   = "number"
	ScaleTypeCR       = "cr"
	ScaleTypeDice     = "dice"
	ScaleTypeDistance = "distance"
)

// ScaleValueType is a typed value read from a scale at some level
type ScaleValueType interface {
	// Type returns the scale type tag
	Type() string
	// Formula is the value as used in roll data
	Formula() string
	// Display is the value as shown to a player
	Display() string
	String() string
}

// ScaleString is free text
type ScaleString struct {
	Value string `json:"value"`
}

func (v *ScaleString) Type() string    { return ScaleTypeString }
func (v *ScaleString) Formula() string { return v.Value }
func (v *ScaleString) Display() string { return v.Value }
func (v *ScaleString) String() string  { return v.Value }

// ScaleNumber is a plain number
type ScaleNumber struct {
	Value float64 `json:"value"`
}

func (v *ScaleNumber) Type() string    { return ScaleTypeNumber }
func (v *ScaleNumber) Formula() string { return formatNumber(v.Value) }
func (v *ScaleNumber) Display() string { return formatNumber(v.Value) }
func (v *ScaleNumber) String() string  { return v.Formula() }

// ScaleCR is a challenge rating
type ScaleCR struct {
	Value float64 `json:"value"`
}

var crFractions = map[float64]string{0.125: "⅛", 0.25: "¼", 0.5: "½"}

func (v *ScaleCR) Type() string    { return ScaleTypeCR }
func (v *ScaleCR) Formula() string { return formatNumber(v.Value) }

// Display renders fractional ratings as vulgar fractions
func (v *ScaleCR) Display() string {
	if f, ok := crFractions[v.Value]; ok {
		return f
	}
	return formatNumber(v.Value)
}
func (v *ScaleCR) String() string { return v.Display() }

// ScaleDice is a dice expression such as 2d6
type ScaleDice struct {
	Number    int      `json:"number,omitempty"`
	Faces     int      `json:"faces"`
	Modifiers []string `json:"modifiers,omitempty"`
}

var dicePattern = regexp.MustCompile(`^(\d*)d(\d+)`)

func (v *ScaleDice) Type() string { return ScaleTypeDice }

// Die returns the die part without a count, e.g. d6
func (v *ScaleDice) Die() string {
	if v.Faces == 0 {
		return ""
	}
	return "d" + strconv.Itoa(v.Faces)
}

// Formula includes the count and any modifiers
func (v *ScaleDice) Formula() string {
	if v.Faces == 0 {
		return ""
	}
	var b strings.Builder
	if v.Number > 0 {
		b.WriteString(strconv.Itoa(v.Number))
	}
	b.WriteString(v.Die())
	for _, m := range v.Modifiers {
		b.WriteString(m)
	}
	return b.String()
}

func (v *ScaleDice) Display() string { return v.Formula() }
func (v *ScaleDice) String() string  { return v.Formula() }

// Roll rolls the dice and returns the sum. A missing count rolls one die.
func (v *ScaleDice) Roll(roller dice.Roller) (int, error) {
	if v.Faces == 0 {
		return 0, fmt.Errorf("dice value has no faces")
	}
	count := max(v.Number, 1)
	rolls, err := roller.RollN(count, v.Faces)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, r := range rolls {
		total += r
	}
	return total, nil
}

// ScaleDistance is a distance in the configured units
type ScaleDistance struct {
	Value float64 `json:"value"`
	Units string  `json:"-"`
}

func (v *ScaleDistance) Type() string    { return ScaleTypeDistance }
func (v *ScaleDistance) Formula() string { return formatNumber(v.Value) }

// Display appends the units when known
func (v *ScaleDistance) Display() string {
	if v.Units == "" {
		return formatNumber(v.Value)
	}
	return formatNumber(v.Value) + " " + v.Units
}
func (v *ScaleDistance) String() string { return v.Display() }

// IsScaleType reports whether t is a known scale type tag
func IsScaleType(t string) bool {
	switch t {
	case ScaleTypeString, ScaleTypeNumber, ScaleTypeCR, ScaleTypeDice, ScaleTypeDistance:
		return true
	}
	return false
}

// decodeScaleValue reads one raw scale entry as scaleType
func decodeScaleValue(scaleType string, raw json.RawMessage, units string) (ScaleValueType, error) {
	var v ScaleValueType
	switch scaleType {
	case ScaleTypeString:
		v = &ScaleString{}
	case ScaleTypeNumber:
		v = &ScaleNumber{}
	case ScaleTypeCR:
		v = &ScaleCR{}
	case ScaleTypeDice:
		v = &ScaleDice{}
	case ScaleTypeDistance:
		v = &ScaleDistance{Units: units}
	default:
		return nil, fmt.Errorf("unknown scale type %q", scaleType)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("invalid %s value: %w", scaleType, err)
	}
	if d, ok := v.(*ScaleDice); ok && (d.Faces < 0 || d.Number < 0) {
		return nil, fmt.Errorf("invalid dice value %s", string(raw))
	}
	return v, nil
}

// ConvertScaleValue converts v to the target scale type. Values that cannot
// be read as the target type return an error.
func ConvertScaleValue(v ScaleValueType, target string) (ScaleValueType, error) {
	if v == nil {
		return nil, fmt.Errorf("nothing to convert")
	}
	if v.Type() == target {
		return v, nil
	}

	switch target {
	case ScaleTypeString:
		return &ScaleString{Value: v.Display()}, nil
	case ScaleTypeNumber, ScaleTypeCR, ScaleTypeDistance:
		n, err := strconv.ParseFloat(v.Formula(), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", v.Formula())
		}
		switch target {
		case ScaleTypeNumber:
			return &ScaleNumber{Value: n}, nil
		case ScaleTypeCR:
			return &ScaleCR{Value: n}, nil
		}
		return &ScaleDistance{Value: n}, nil
	case ScaleTypeDice:
		m := dicePattern.FindStringSubmatch(strings.TrimSpace(v.Formula()))
		if m == nil {
			return nil, fmt.Errorf("%q is not a dice expression", v.Formula())
		}
		out := &ScaleDice{}
		if m[1] != "" {
			out.Number, _ = strconv.Atoi(m[1])
		}
		out.Faces, _ = strconv.Atoi(m[2])
		return out, nil
	}
	return nil, fmt.Errorf("unknown scale type %q", target)
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
