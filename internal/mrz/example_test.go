package mrz_test

import (
	"fmt"

	"mrzscan/internal/mrz"
)

// Example feeds a Belgian eID MRZ that is read one line per frame.
func Example() {
	state := mrz.NewState(mrz.DefaultRules())

	frames := [][]string{
		{"I<BEL0123456789<12345678901<<<"},
		{"8001014F2501017BEL<<<<<<<<<<<6"},
		{"DUPONT<<JEAN<<<<<<<<<<<<<<<<<<"},
	}

	for _, candidates := range frames {
		var out mrz.Output
		state, out = mrz.Advance(state, candidates)
		if out.Kind == mrz.Result {
			fmt.Println(out.Text)
			continue
		}
		fmt.Println(out)
	}

	// Output:
	// progress(25)
	// progress(75)
	// I<BEL0123456789<12345678901<<<
	// 8001014F2501017BEL<<<<<<<<<<<6
	// DUPONT<<JEAN<<<<<<<<<<<<<<<<<<
}

// ExampleAccumulator shows the frame-level API a scan session uses.
func ExampleAccumulator() {
	acc := mrz.NewAccumulator(mrz.DefaultRules(), mrz.Extractor{})

	frame := mrz.Frame{Blocks: []mrz.TextBlock{{
		Lines: []mrz.TextLine{
			{Text: "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<"},
			{Text: "L898902C36UTO7408122F1204159ZE184226B<<<<<10"},
			{Text: "L898902C36UTO7408122F1204159ZE184226B<<<<<10"},
		},
		Corners: []mrz.Point{{X: 0, Y: 400}, {X: 800, Y: 400}, {X: 800, Y: 480}, {X: 0, Y: 480}},
	}}}

	scan := acc.Feed(frame)
	fmt.Println(scan.Output.Kind, scan.Selection.Corners[0])
	fmt.Println(scan.Output.Text)

	// Output:
	// result {0 400}
	// P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<
	// L898902C36UTO7408122F1204159ZE184226B<<<<<10
}

func ExampleParse() {
	fields, err := mrz.Parse("P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<\n" +
		"L898902C36UTO7408122F1204159ZE184226B<<<<<10")
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(fields.Format, fields.DocumentNumber, fields.Surname, fields.GivenNames)
	fmt.Println(fields.BirthDate, fields.ExpiryDate, fields.Valid())

	// Output:
	// TD3 L898902C3 ERIKSSON ANNA MARIA
	// 740812 120415 true
}
