package mrz

import "regexp"

// Role is the position a line takes in an assembled document.
type Role int

const (
	RoleUnknown Role = iota
	RoleFirst
	RoleSecond
	RoleThird
)

func (r Role) String() string {
	switch r {
	case RoleFirst:
		return "first"
	case RoleSecond:
		return "second"
	case RoleThird:
		return "third"
	default:
		return "unknown"
	}
}

// TD1 line grammars.
var (
	// document code, issuing state, document number, check digit, optional data
	reTD1First = regexp.MustCompile(`^[IAC][CDP<][A-Z<]{3}[A-Z0-9<]{9}[0-9<][A-Z0-9<]{0,15}$`)
	// birth date + check, sex, expiry + check, nationality, optional data, composite check
	reTD1Second = regexp.MustCompile(`^[0-9]{7}[A-Z<][0-9]{7}[A-Z<]{3}[A-Z0-9<]{11}[0-9]$`)
	// name
	reTD1Third = regexp.MustCompile(`^[A-Z<]{30}$`)
)

// ClassifyTD1 returns the role of a TD1 line, or RoleUnknown when the line
// matches none of the three grammars. The grammars are tried in document
// order and the first match wins.
func ClassifyTD1(line string) Role {
	switch {
	case reTD1First.MatchString(line):
		return RoleFirst
	case reTD1Second.MatchString(line):
		return RoleSecond
	case reTD1Third.MatchString(line):
		return RoleThird
	default:
		return RoleUnknown
	}
}

// assign maps buffered lines to canonical slots. It returns the slots in
// document order and the indexes of lines that could not be placed: lines
// matching no grammar, and lines whose slot was already taken by an earlier
// line. Two-line formats are placed by arrival order.
func assign(format Format, lines []string) (slots []string, missed []int) {
	slots = make([]string, format.LineCount())

	if format != FormatTD1 {
		copy(slots, lines)
		return slots, nil
	}

	for i, line := range lines {
		role := ClassifyTD1(line)
		if role == RoleUnknown || slots[role-1] != "" {
			missed = append(missed, i)
			continue
		}
		slots[role-1] = line
	}
	return slots, missed
}
