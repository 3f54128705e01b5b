package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	require "github.com/alecthomas/assert/v2"

	"github.com/alecthomas/streamparse"
	"github.com/alecthomas/streamparse/grammars/jsonl"
	"github.com/alecthomas/streamparse/grammars/toml"
)

func TestRun(t *testing.T) {
	logs := &bytes.Buffer{}
	logger, _, err := newLogger(logs, "info", "")
	require.NoError(t, err)
	c := &streamCmd{Grammar: "jsonl", ChunkSize: 3, Format: "json"}
	err = run[*jsonl.Line](context.Background(), c, strings.NewReader("{\"a\": 1}\n[2]\n"), &bytes.Buffer{}, jsonl.New(), c.options(logger), logger)
	require.NoError(t, err)
	require.Contains(t, logs.String(), "units=2")

	err = run[*jsonl.Line](context.Background(), c, strings.NewReader("[1\n"), &bytes.Buffer{}, jsonl.New(), c.options(logger), logger)
	require.IsError(t, err, streamparse.ErrIncompleteInput)
}

func TestRunSkipInvalid(t *testing.T) {
	logger, _, err := newLogger(&bytes.Buffer{}, "error", "")
	require.NoError(t, err)
	c := &streamCmd{Grammar: "toml", ChunkSize: 8, Format: "repr", SkipInvalid: true, MaxDepth: 4}
	err = run[*toml.Item](context.Background(), c, strings.NewReader("a = 1\nb = = 2\n[c]\n"), &bytes.Buffer{}, toml.New(), c.options(logger), logger)
	require.NoError(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRunOutputError(t *testing.T) {
	logger, _, err := newLogger(&bytes.Buffer{}, "error", "")
	require.NoError(t, err)
	c := &streamCmd{Grammar: "jsonl", ChunkSize: 4, Format: "json", TokenQueue: 1, UnitQueue: 1}
	input := strings.NewReader(strings.Repeat("[1, 2]\n", 1000))
	err = run[*jsonl.Line](context.Background(), c, input, failingWriter{}, jsonl.New(), c.options(logger), logger)
	require.EqualError(t, err, "disk full")
}

func TestRunPrintsUnits(t *testing.T) {
	logger, _, err := newLogger(&bytes.Buffer{}, "error", "")
	require.NoError(t, err)
	out := &bytes.Buffer{}
	c := &streamCmd{Grammar: "jsonl", ChunkSize: 5, Format: "json"}
	err = run[*jsonl.Line](context.Background(), c, strings.NewReader("1\n2\n"), out, jsonl.New(), c.options(logger), logger)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(out.String(), "\n"))
	require.Contains(t, out.String(), `"Number":"2"`)
}

func TestNewLoggerLevel(t *testing.T) {
	_, _, err := newLogger(&bytes.Buffer{}, "loud", "")
	require.Error(t, err)

	logs := &bytes.Buffer{}
	logger, closer, err := newLogger(logs, "warn", "")
	require.NoError(t, err)
	require.NoError(t, closer.Close())
	logger.Info("hidden")
	logger.Warn("shown")
	require.NotContains(t, logs.String(), "hidden")
	require.Contains(t, logs.String(), "shown")
}
