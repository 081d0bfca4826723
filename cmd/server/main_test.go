package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/vovakirdan/wirerelay/internal/auth"
)

func TestHashKeyCommand(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		stdin string
	}{
		{name: "argument", args: []string{"hash-key", "s3cret"}},
		{name: "stdin", args: []string{"hash-key"}, stdin: "s3cret\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := newRootCmd()
			cmd.SetArgs(tt.args)
			cmd.SetIn(strings.NewReader(tt.stdin))
			cmd.SetOut(&out)

			if err := cmd.Execute(); err != nil {
				t.Fatalf("execute: %v", err)
			}

			hash := strings.TrimSpace(out.String())
			if err := auth.CompareKey(hash, "s3cret"); err != nil {
				t.Fatalf("hash does not match key: %v", err)
			}
		})
	}
}

func TestHashKeyRejectsEmpty(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"hash-key"})
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetOut(&bytes.Buffer{})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for empty key")
	}
}
