package main

import (
	"bytes"
	stdlog "log"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/models"
)

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, []models.Result{
		{Title: "a.pdfpage_0", Content: "first chunk", Score: 0.9, ChunkID: "1"},
		{Title: "b.pdfpage_2", Content: "second chunk", Score: 0.5, ChunkID: "2"},
	})
	out := buf.String()
	for _, want := range []string{"a.pdfpage_0", "first chunk", "Relevance score: 0.9", "b.pdfpage_2", "Relevance score: 0.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if got := strings.Count(out, models.ResultSeparator); got != 2 {
		t.Errorf("expected 2 separators, got %d", got)
	}
	if strings.Index(out, "a.pdfpage_0") > strings.Index(out, "b.pdfpage_2") {
		t.Errorf("results printed out of order")
	}
}

func TestPrintResults_Empty(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, nil)
	if !strings.Contains(buf.String(), "No matching chunks") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestPromptQuery(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("  what is pgvector?  \n"))

	q, err := promptQuery(cmd)
	if err != nil {
		t.Fatalf("promptQuery: %v", err)
	}
	if q != "what is pgvector?" {
		t.Fatalf("unexpected query %q", q)
	}
	if out.String() != "Enter your query: " {
		t.Fatalf("unexpected prompt %q", out.String())
	}
}

func TestPromptQuery_NoTrailingNewline(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("bread"))

	q, err := promptQuery(cmd)
	if err != nil || q != "bread" {
		t.Fatalf("got %q, %v", q, err)
	}
}

func TestSetLogLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	tests := []struct {
		level string
		debug bool
		want  zerolog.Level
	}{
		{"warn", false, zerolog.WarnLevel},
		{"warn", true, zerolog.DebugLevel},
		{"", false, zerolog.InfoLevel},
		{"nonsense", false, zerolog.InfoLevel},
	}
	for _, tt := range tests {
		setLogLevel(tt.level, tt.debug)
		if got := zerolog.GlobalLevel(); got != tt.want {
			t.Errorf("setLogLevel(%q, %v) = %v, want %v", tt.level, tt.debug, got, tt.want)
		}
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"index", "query", "chunks"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("missing subcommand %s: %v", name, err)
		}
	}
}

func TestChunksCmd_RequiresFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"chunks"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an argument error")
	}
}

func TestShouldRecreate(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"directory run recreates by default", nil, true},
		{"directory run can keep the table", []string{"--recreate=false"}, false},
		{"single file keeps the table", []string{"--file", "new.pdf"}, false},
		{"single file with explicit recreate", []string{"--file", "new.pdf", "--recreate"}, true},
		{"single file with explicit keep", []string{"--file", "new.pdf", "--recreate=false"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newIndexCmd(nil)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags: %v", err)
			}
			if got := shouldRecreate(cmd); got != tt.want {
				t.Fatalf("shouldRecreate(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestStdLogWriter_ForwardsAtDebug(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	defer func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	}()

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	std := stdlog.New(stdLogWriter{}, "", 0)
	std.Printf("[WARN] created a chunk with size of %v, which is longer then the specified %v\n", 6, 5)

	out := buf.String()
	if !strings.Contains(out, `"level":"debug"`) || !strings.Contains(out, "created a chunk with size of 6") {
		t.Fatalf("unexpected log output %q", out)
	}

	buf.Reset()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	std.Print("hidden at info")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing at info level, got %q", buf.String())
	}
}
