package attribution

import (
	"fmt"
	"strings"
)

// verb describes a contribution by its own sign.
func verb(contribution float64) string {
	switch {
	case contribution > 0:
		return "contributed positively"
	case contribution < 0:
		return "contributed negatively"
	default:
		return "had no effect"
	}
}

func pp(contribution float64) string {
	return fmt.Sprintf("%+.2f pp", contribution*100)
}

func describe(r Record) string {
	return fmt.Sprintf("%s %s (%s)", r.Symbol, verb(r.Contribution), pp(r.Contribution))
}

func describeAll(records []Record) string {
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = describe(r)
	}
	return strings.Join(parts, ", ")
}

// Narrate renders the key-driver classification as deterministic sentences.
// The window label is always stated so windowed figures are never mistaken
// for a headline return over a different period.
func Narrate(window string, total float64, kd KeyDriver) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Over %s the portfolio returned %+.2f%%.", window, total*100)

	switch kd.Classification {
	case SingleDominantDriver:
		fmt.Fprintf(&b, " %s and was the single dominant driver;", describe(kd.Highlighted))
		fmt.Fprintf(&b, " the remaining holdings %s on net (%s).", verb(kd.RestCombined), pp(kd.RestCombined))
		if len(kd.TopNegative) > 0 {
			fmt.Fprintf(&b, " Largest detractors: %s.", describeAll(kd.TopNegative))
		}

	case BroadBasedDecline:
		b.WriteString(" The decline was broad-based: every holding contributed negatively.")
		fmt.Fprintf(&b, " The most resilient holding was %s.", describe(kd.Highlighted))

	default:
		if len(kd.TopPositive) > 0 {
			fmt.Fprintf(&b, " Top contributors: %s.", describeAll(kd.TopPositive))
		}
		if len(kd.TopNegative) > 0 {
			fmt.Fprintf(&b, " Top detractors: %s.", describeAll(kd.TopNegative))
		}
		if len(kd.TopPositive)+len(kd.TopNegative) > 0 {
			fmt.Fprintf(&b, " Together they account for %s.", pp(kd.Combined))
		}
	}

	return b.String()
}
