package cmd

import (
	"reflect"
	"testing"
)

func TestSplitDocuments(t *testing.T) {
	input := "p<utoeriksson<<anna<maria<<<<<<<<<<<<<<<<<<<\r\n" +
		"L898902C36UTO7408122F1204159ZE184226B<<<<<10\n" +
		"\n\n" +
		"I<BEL0123456789<12345678901<<<\n" +
		"8001014F2501017BEL<<<<<<<<<<<6\n" +
		"DUPONT<<JEAN «<<<<<<<<<<<<<<<<<\n"

	want := []string{
		"P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<\nL898902C36UTO7408122F1204159ZE184226B<<<<<10",
		"I<BEL0123456789<12345678901<<<\n8001014F2501017BEL<<<<<<<<<<<6\nDUPONT<<JEAN<<<<<<<<<<<<<<<<<<",
	}

	if got := splitDocuments(input); !reflect.DeepEqual(got, want) {
		t.Errorf("splitDocuments = %q\nwant %q", got, want)
	}
}
