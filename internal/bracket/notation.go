package bracket

import "fmt"

var segmentPrefixes = map[Segment]string{
	UpperSegment:        "UB",
	LowerSegment:        "LB",
	SwissSegment:        "SW",
	RoundRobinSegment:   "RR",
	GrandFinalSegment:   "GF",
	BracketResetSegment: "BR",
}

// Notation renders R{round}M{position}, prefixed with the segment when the
// stage mixes segments.
func (k Key) Notation(qualified bool) string {
	n := fmt.Sprintf("R%dM%d", k.Round, k.Position)
	if !qualified {
		return n
	}
	return segmentPrefixes[k.Segment] + "-" + n
}

func (m *Match) Notation(qualified bool) string {
	return m.Key().Notation(qualified)
}

// Notation is the display identifier of m within a stage of the given format.
func Notation(format Format, m *Match) string {
	return m.Notation(qualifiedNotation(format))
}

func qualifiedNotation(format Format) bool {
	return format == DoubleEliminationFormat
}

// SourceRef is the symbolic slot source "W:<notation>" or "L:<notation>".
func SourceRef(role Role, notation string) string {
	if role == LoserRole {
		return "L:" + notation
	}
	return "W:" + notation
}
