package sheets

import (
	"testing"
	"time"

	"mrzscan/internal/mrz"
)

func TestExtractSpreadsheetID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=0", "1AbC-d_9", false},
		{"https://docs.google.com/spreadsheets/d/xyz", "xyz", false},
		{"https://example.com/sheet", "", true},
	}

	for _, tt := range tests {
		got, err := extractSpreadsheetID(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("extractSpreadsheetID(%q) err = %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("extractSpreadsheetID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestRecordToValues(t *testing.T) {
	text := "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<\nL898902C36UTO7408122F1204159ZE184226B<<<<<10"
	fields, err := mrz.Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	row := recordToValues(Record{
		ScannedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Source:    "session-1",
		MRZ:       text,
		Fields:    fields,
	})

	if len(row) != len(headers) {
		t.Fatalf("row has %d columns, want %d", len(row), len(headers))
	}

	want := map[int]string{
		0:  "2025-03-01T12:00:00Z",
		1:  "session-1",
		2:  "TD3",
		5:  "L898902C3",
		6:  "ERIKSSON",
		7:  "ANNA MARIA",
		9:  "740812",
		10: "F",
		12: "valid",
		13: text,
	}
	for col, v := range want {
		if row[col] != v {
			t.Errorf("column %d = %v, want %q", col, row[col], v)
		}
	}
}

func TestRecordToValuesUnparsed(t *testing.T) {
	row := recordToValues(Record{MRZ: "GARBAGE"})
	if row[12] != "unparsed" || row[13] != "GARBAGE" || row[2] != "" {
		t.Errorf("row = %v", row)
	}
}

func TestCheckDigitSummary(t *testing.T) {
	f := &mrz.Fields{CheckDigits: []mrz.CheckDigit{
		{Field: "document_number", Valid: false},
		{Field: "birth_date", Valid: true},
		{Field: "composite", Valid: false},
	}}
	if got := checkDigitSummary(f); got != "invalid: document_number, composite" {
		t.Errorf("summary = %q", got)
	}
}
