package main

import (
	"testing"
)

func TestDumpCommand(t *testing.T) {
	tests := []struct {
		name           string
		charset        string
		bytes          int
		noHex          bool
		wantJSON       bool
		wantErr        bool
		wantContain    []string
		wantNotContain []string
	}{
		{
			name:        "dump text",
			charset:     "cp437",
			bytes:       64,
			wantContain: []string{"Free blocks (1):", "Allocated blocks (0):", "Memory:", "|"},
		},
		{
			name:           "dump without hexdump",
			charset:        "ascii",
			bytes:          64,
			noHex:          true,
			wantContain:    []string{"Managed:"},
			wantNotContain: []string{"Memory:"},
		},
		{
			name:        "dump as JSON",
			charset:     "cp437",
			bytes:       32,
			wantJSON:    true,
			wantContain: []string{"\"free\"", "\"hex\""},
		},
		{
			name:    "dump with unknown charset",
			charset: "ebcdic",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			jsonOut = tt.wantJSON
			dumpCharset = tt.charset
			dumpBytes = tt.bytes
			dumpNoHex = tt.noHex

			args := []string{testScenarioPath(t, "first_fit")}
			output, err := captureOutput(t, func() error {
				return runDump(args)
			})

			if (err != nil) != tt.wantErr {
				t.Errorf("runDump() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if tt.wantJSON {
				assertJSON(t, output)
			}
			assertContains(t, output, tt.wantContain)
			assertNotContains(t, output, tt.wantNotContain)
		})
	}
}
