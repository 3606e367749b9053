package mrz

import (
	"fmt"
	"strings"
)

// CheckDigit is the outcome of verifying one ICAO check digit.
type CheckDigit struct {
	Field    string `json:"field"`
	Digit    string `json:"digit"`
	Expected string `json:"expected"`
	Valid    bool   `json:"valid"`
}

// Fields is the parsed content of a finished document. Dates are kept in
// their YYMMDD form since the century cannot be told from the MRZ alone.
type Fields struct {
	Format         Format       `json:"format"`
	DocumentCode   string       `json:"document_code"`
	IssuingState   string       `json:"issuing_state"`
	DocumentNumber string       `json:"document_number"`
	OptionalData   string       `json:"optional_data,omitempty"`
	OptionalData2  string       `json:"optional_data_2,omitempty"`
	BirthDate      string       `json:"birth_date"`
	Sex            string       `json:"sex,omitempty"`
	ExpiryDate     string       `json:"expiry_date"`
	Nationality    string       `json:"nationality"`
	Surname        string       `json:"surname"`
	GivenNames     string       `json:"given_names,omitempty"`
	CheckDigits    []CheckDigit `json:"check_digits"`
}

// Valid reports whether every check digit matched.
func (f *Fields) Valid() bool {
	for _, cd := range f.CheckDigits {
		if !cd.Valid {
			return false
		}
	}
	return true
}

// Parse splits a finished document into its fields. Check digit mismatches
// do not fail parsing; they are reported in Fields.CheckDigits.
func Parse(text string) (*Fields, error) {
	const op = "Parse"

	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
		if !IsCandidate(lines[i]) {
			return nil, newParseError(op, ErrInvalidCharacter, fmt.Sprintf("line %d", i+1))
		}
	}

	for _, line := range lines[1:] {
		if len(line) != len(lines[0]) {
			return nil, newParseError(op, ErrLineLength, fmt.Sprintf("%d and %d characters", len(lines[0]), len(line)))
		}
	}

	format := FormatForLength(len(lines[0]))
	if format == FormatUnknown || len(lines) != format.LineCount() {
		return nil, newParseError(op, ErrUnknownFormat, fmt.Sprintf("%d lines of %d characters", len(lines), len(lines[0])))
	}

	switch format {
	case FormatTD1:
		return parseTD1(lines), nil
	default:
		return parseTwoLine(format, lines), nil
	}
}

// parseTD1 reads an identity card layout.
// Line 1: code(2) state(3) number(9) check(1) optional(15)
// Line 2: birth(6) check(1) sex(1) expiry(6) check(1) nationality(3) optional(11) composite(1)
// Line 3: name(30)
func parseTD1(lines []string) *Fields {
	l1, l2, l3 := lines[0], lines[1], lines[2]

	f := &Fields{
		Format:        FormatTD1,
		DocumentCode:  cleanCode(l1[0:2]),
		IssuingState:  cleanCode(l1[2:5]),
		OptionalData:  cleanText(l1[15:30]),
		BirthDate:     l2[0:6],
		Sex:           cleanSex(l2[7]),
		ExpiryDate:    l2[8:14],
		Nationality:   cleanCode(l2[15:18]),
		OptionalData2: cleanText(l2[18:29]),
	}
	f.Surname, f.GivenNames = splitName(l3)

	number, numberCheck := l1[5:14], l1[14]
	if numberCheck == '<' && f.OptionalData != "" {
		// Long document numbers continue in the optional data field, with the
		// check digit as the last character before the filler.
		overflow := strings.SplitN(l1[15:30], "<", 2)[0]
		if len(overflow) > 0 {
			number += overflow[:len(overflow)-1]
			numberCheck = overflow[len(overflow)-1]
			f.OptionalData = cleanText(l1[15+len(overflow) : 30])
		}
	}
	f.DocumentNumber = strings.ReplaceAll(number, "<", "")

	f.CheckDigits = []CheckDigit{
		verify("document_number", number, numberCheck),
		verify("birth_date", l2[0:6], l2[6]),
		verify("expiry_date", l2[8:14], l2[14]),
		verify("composite", l1[5:30]+l2[0:7]+l2[8:15]+l2[18:29], l2[29]),
	}
	return f
}

// parseTwoLine reads the TD2 and TD3 layouts, which only differ in width.
// Line 1: code(2) state(3) name(rest)
// Line 2: number(9) check(1) nationality(3) birth(6) check(1) sex(1)
// expiry(6) check(1) optional(rest-1) composite(1)
// TD3 uses the last optional position as the personal number check digit.
func parseTwoLine(format Format, lines []string) *Fields {
	l1, l2 := lines[0], lines[1]
	width := format.LineLength()

	f := &Fields{
		Format:         format,
		DocumentCode:   cleanCode(l1[0:2]),
		IssuingState:   cleanCode(l1[2:5]),
		DocumentNumber: strings.ReplaceAll(l2[0:9], "<", ""),
		Nationality:    cleanCode(l2[10:13]),
		BirthDate:      l2[13:19],
		Sex:            cleanSex(l2[20]),
		ExpiryDate:     l2[21:27],
	}
	f.Surname, f.GivenNames = splitName(l1[5:width])

	f.CheckDigits = []CheckDigit{
		verify("document_number", l2[0:9], l2[9]),
		verify("birth_date", l2[13:19], l2[19]),
		verify("expiry_date", l2[21:27], l2[27]),
	}

	if format == FormatTD3 {
		f.OptionalData = cleanText(l2[28:42])
		f.CheckDigits = append(f.CheckDigits, verify("personal_number", l2[28:42], l2[42]))
	} else {
		f.OptionalData = cleanText(l2[28 : width-1])
	}

	f.CheckDigits = append(f.CheckDigits,
		verify("composite", l2[0:10]+l2[13:20]+l2[21:width-1], l2[width-1]))
	return f
}

// ComputeCheckDigit returns the ICAO 9303 check digit of s: characters are
// valued 0-9 for digits, 10-35 for A-Z and 0 for '<', weighted 7, 3, 1
// repeating, summed modulo 10.
func ComputeCheckDigit(s string) byte {
	weights := [3]int{7, 3, 1}
	sum := 0
	for i := 0; i < len(s); i++ {
		sum += charValue(s[i]) * weights[i%3]
	}
	return byte('0' + sum%10)
}

func charValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return 0
	}
}

func verify(field, value string, digit byte) CheckDigit {
	expected := ComputeCheckDigit(value)
	got := digit
	if got == '<' {
		got = '0'
	}
	return CheckDigit{
		Field:    field,
		Digit:    string(digit),
		Expected: string(expected),
		Valid:    got == expected,
	}
}

func splitName(s string) (surname, given string) {
	parts := strings.SplitN(s, "<<", 2)
	surname = cleanText(parts[0])
	if len(parts) == 2 {
		given = cleanText(parts[1])
	}
	return surname, given
}

// cleanText drops trailing filler and turns inner fillers into spaces.
func cleanText(s string) string {
	s = strings.TrimRight(s, "<")
	return strings.TrimSpace(strings.ReplaceAll(s, "<", " "))
}

func cleanCode(s string) string {
	return strings.ReplaceAll(s, "<", "")
}

func cleanSex(c byte) string {
	switch c {
	case 'M', 'F', 'X':
		return string(c)
	default:
		return ""
	}
}
