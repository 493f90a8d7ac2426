package gcsstore

import (
	"testing"

	"github.com/discochess/chessllm/internal/codec/gzipcodec"
	"github.com/discochess/chessllm/internal/codec/noopcodec"
)

func TestWithPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"prefix", "prefix/"},
		{"prefix/", "prefix/"},
		{"a/b/c", "a/b/c/"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s := &Store{}
			WithPrefix(tt.input)(s)
			if s.prefix != tt.want {
				t.Errorf("prefix = %q, want %q", s.prefix, tt.want)
			}
		})
	}
}

func TestStore_key(t *testing.T) {
	tests := []struct {
		name   string
		store  *Store
		object string
		want   string
	}{
		{"no prefix", &Store{codec: gzipcodec.New()}, "cache.json", "cache.json.gz"},
		{"prefix", &Store{codec: gzipcodec.New(), prefix: "llm/"}, "cache.json", "llm/cache.json.gz"},
		{"uncompressed", &Store{codec: noopcodec.New(), prefix: "llm/"}, "index.json", "llm/index.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.store.key(tt.object); got != tt.want {
				t.Errorf("key(%q) = %q, want %q", tt.object, got, tt.want)
			}
		})
	}
}
