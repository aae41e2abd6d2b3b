package memory

import (
	"strings"
)

// typeHeadings name each section of the injection block, in priority order.
var typeHeadings = map[Type]string{
	TypeIdentity:      "Identity",
	TypeValue:         "Values",
	TypeThinking:      "Thinking patterns",
	TypePreference:    "Preferences",
	TypeCommunication: "Communication style",
}

// FormatForInjection renders scored memories as a bounded text block for the
// host to embed in its own envelope. Sections appear in fixed type priority
// order. When the budget runs out, entries truncate with an explicit "- ..."
// marker and a section whose header plus first entry cannot fit is omitted
// entirely rather than rendered as a bare header.
func FormatForInjection(scored []ScoredMemory, maxLength int) string {
	if len(scored) == 0 {
		return ""
	}

	lines := []string{
		"<user-profile>",
		"Known characteristics and preferences of the user:",
		"",
	}
	footer := "</user-profile>"

	byType := make(map[Type][]*Atom)
	for _, s := range scored {
		byType[s.Atom.Type] = append(byType[s.Atom.Type], s.Atom)
	}

	length := 0
	for _, l := range lines {
		length += len(l) + 1
	}
	budget := maxLength - len(footer) - 1

	for _, typ := range Types() {
		atoms := byType[typ]
		if len(atoms) == 0 {
			continue
		}

		header := "## " + typeHeadings[typ]
		first := entryLine(atoms[0])
		if length+len(header)+1+len(first)+1+1 > budget {
			break
		}

		lines = append(lines, header)
		length += len(header) + 1

		for _, a := range atoms {
			entry := entryLine(a)
			if length+len(entry)+1 > budget {
				if length+6 <= budget {
					lines = append(lines, "- ...")
					length += 6
				}
				break
			}
			lines = append(lines, entry)
			length += len(entry) + 1
		}

		lines = append(lines, "")
		length++
	}

	lines = append(lines, footer)
	return strings.Join(lines, "\n")
}

func entryLine(a *Atom) string {
	if marker := confidenceMarker(a.Confidence); marker != "" {
		return "- " + a.Content + " " + marker
	}
	return "- " + a.Content
}

// confidenceMarker annotates an entry with a coarse confidence band.
func confidenceMarker(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "(high confidence)"
	case confidence >= 0.6:
		return "(moderate confidence)"
	case confidence >= 0.4:
		return "(low confidence)"
	default:
		return ""
	}
}
