package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGameFromArgs(t *testing.T) {
	tests := []struct {
		name    string
		fen     string
		args    []string
		plies   int
		wantErr bool
	}{
		{name: "initial position", plies: 0},
		{name: "movetext", args: []string{"1. e4 e5 2. Nf3"}, plies: 3},
		{name: "fen", fen: "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3"},
		{name: "bad fen", fen: "not a fen", wantErr: true},
		{name: "illegal movetext", args: []string{"1. e5"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := gameFromArgs(tt.fen, tt.args)
			if tt.wantErr {
				if err == nil {
					t.Error("gameFromArgs() should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("gameFromArgs() error = %v", err)
			}
			if len(g.Moves()) != tt.plies {
				t.Errorf("plies = %d, want %d", len(g.Moves()), tt.plies)
			}
			if tt.fen != "" && g.Position().String() != tt.fen {
				t.Errorf("FEN = %q, want %q", g.Position().String(), tt.fen)
			}
		})
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chessllm.log")
	logFile, verbose = path, true
	t.Cleanup(func() { logFile, verbose = "", false })

	log, err := newLogger()
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	log.Debug("hello")
	log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file = %q", data)
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"uci"},
		{"move"},
		{"puzzles", "build"},
		{"puzzles", "solve"},
		{"cache", "stats"},
		{"cache", "lookup"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not registered", path)
		}
	}
}
