package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.txt")
	records := []Record{
		{Timestamp: 0, Caption: "a man riding a wave on top of a surfboard"},
		{Timestamp: 10 * time.Second, Caption: "a dog, a cat and a bird"},
		{Timestamp: 20 * time.Second, Caption: ""},
	}

	if err := Write(path, records); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != len(records) {
		t.Fatalf("report has %d lines, want %d", len(lines), len(records))
	}
	if lines[1] != "0:00:10, a dog, a cat and a bird" {
		t.Errorf("line 1 = %q", lines[1])
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("Read() = %d records, want %d", len(got), len(records))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], records[i])
		}
	}
}

func TestWrite_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.txt")
	if err := Write(path, []Record{{0, "first"}, {10 * time.Second, "second"}}); err != nil {
		t.Fatal(err)
	}
	if err := Write(path, []Record{{0, "only"}}); err != nil {
		t.Fatal(err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 1 || got[0].Caption != "only" {
		t.Errorf("Read() = %+v, want single record", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Record
		wantErr bool
	}{
		{
			name:  "crlf and blank lines",
			input: "0:00:00, a cat\r\n\r\n0:00:10, a hat\r\n",
			want:  []Record{{0, "a cat"}, {10 * time.Second, "a hat"}},
		},
		{
			name:  "day prefix",
			input: "1 day, 0:00:10, night sky, stars\n",
			want:  []Record{{24*time.Hour + 10*time.Second, "night sky, stars"}},
		},
		{
			name:    "missing caption field",
			input:   "0:00:00 no comma\n",
			wantErr: true,
		},
		{
			name:    "bad timestamp",
			input:   "yesterday, a cat\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Parse() = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("record %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
