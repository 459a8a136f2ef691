package demand

import (
	"strings"
	"testing"
)

func TestReadTrace_GeneratorHeader(t *testing.T) {
	csv := `origin_id,destination_id,request_time
S1,S2,3600
S3,S4,25:30:00
S5,,00:05
`
	reqs, err := readTrace(strings.NewReader(csv), 0)
	if err != nil {
		t.Fatalf("readTrace: %v", err)
	}
	if len(reqs) != 3 {
		t.Fatalf("got %d requests, want 3", len(reqs))
	}
	want := []Request{
		{ID: 0, Origin: "S1", Dest: "S2", ArrivalSec: 3600},
		{ID: 1, Origin: "S3", Dest: "S4", ArrivalSec: 25*3600 + 30*60},
		{ID: 2, Origin: "S5", Dest: "", ArrivalSec: 300},
	}
	for i := range want {
		if reqs[i] != want[i] {
			t.Errorf("request %d = %+v, want %+v", i, reqs[i], want[i])
		}
	}
}

func TestReadTrace_AlternateHeaderSpelling(t *testing.T) {
	csv := `arrival_time,origin_stop_id,destination_stop_id
100,A,B
`
	reqs, err := readTrace(strings.NewReader(csv), 0)
	if err != nil {
		t.Fatalf("readTrace: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Origin != "A" || reqs[0].Dest != "B" || reqs[0].ArrivalSec != 100 {
		t.Errorf("got %+v", reqs)
	}
}

func TestReadTrace_DestinationColumnOptional(t *testing.T) {
	csv := `origin_id,request_time
A,100
`
	reqs, err := readTrace(strings.NewReader(csv), 0)
	if err != nil {
		t.Fatalf("readTrace: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Dest != "" {
		t.Errorf("got %+v", reqs)
	}
}

func TestReadTrace_SampleSizeCapsRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("origin_id,request_time\n")
	for i := 0; i < 10; i++ {
		b.WriteString("A,100\n")
	}
	reqs, err := readTrace(strings.NewReader(b.String()), 3)
	if err != nil {
		t.Fatalf("readTrace: %v", err)
	}
	if len(reqs) != 3 {
		t.Errorf("got %d requests, want 3", len(reqs))
	}
}

func TestReadTrace_MissingColumns(t *testing.T) {
	cases := []struct {
		name string
		csv  string
	}{
		{"no origin", "destination_id,request_time\nB,100\n"},
		{"no arrival", "origin_id,destination_id\nA,B\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := readTrace(strings.NewReader(tc.csv), 0); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}
}

func TestReadTrace_BadTimeValue(t *testing.T) {
	csv := "origin_id,request_time\nA,noon\n"
	if _, err := readTrace(strings.NewReader(csv), 0); err == nil {
		t.Error("expected an error, got nil")
	}
}

func TestParseDaySeconds(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"3600", 3600, false},
		{" 42 ", 42, false},
		{"08:30:15", 8*3600 + 30*60 + 15, false},
		{"08:30", 8*3600 + 30*60, false},
		{"26:10:00", 26*3600 + 10*60, false}, // overnight trips run past 24h
		{"", 0, true},
		{"-5", 0, true},
		{"1:2:3:4", 0, true},
		{"12:61:00", 0, true},
		{"12:00:99", 0, true},
		{"ab:cd", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDaySeconds(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDaySeconds(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDaySeconds(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDaySeconds(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestLoadTrace_MissingFile(t *testing.T) {
	if _, err := LoadTrace("does-not-exist.csv", 0); err == nil {
		t.Error("expected an error for a missing file")
	}
}
