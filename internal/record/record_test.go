package record

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCast(t *testing.T) {
	start := time.Date(2025, 10, 2, 12, 0, 0, 0, time.UTC)
	clock := start
	var buf bytes.Buffer

	r, err := New(&buf, 4, 2, func() time.Time { return clock })
	if err != nil {
		t.Fatal(err)
	}
	clock = start.Add(1500 * time.Millisecond)
	if err := r.Frame([][]rune{[]rune("ab  "), []rune("cd  ")}); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if r.Frames() != 1 {
		t.Errorf("frames = %d", r.Frames())
	}

	sc := bufio.NewScanner(&buf)
	if !sc.Scan() {
		t.Fatal("no header")
	}
	var header Header
	if err := json.Unmarshal(sc.Bytes(), &header); err != nil {
		t.Fatal(err)
	}
	want := Header{Version: 2, Width: 4, Height: 2, Timestamp: start.Unix(), Env: header.Env}
	if diff := cmp.Diff(want, header); diff != "" {
		t.Errorf("header (-want +got):\n%s", diff)
	}

	if !sc.Scan() {
		t.Fatal("no frame")
	}
	var event []any
	if err := json.Unmarshal(sc.Bytes(), &event); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{1.5, "o", clearHome + "ab\r\ncd"}, event); diff != "" {
		t.Errorf("event (-want +got):\n%s", diff)
	}
}

func TestNilRecorder(t *testing.T) {
	r, err := Create("", 80, 24)
	if err != nil || r != nil {
		t.Fatalf("Create(\"\") = %v, %v", r, err)
	}
	if err := r.Frame([][]rune{[]rune("x")}); err != nil {
		t.Error(err)
	}
	if r.Frames() != 0 || r.Close() != nil {
		t.Error("nil recorder did something")
	}
}

func TestCreateWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cast")
	r, err := Create(path, 10, 3)
	if err != nil {
		t.Fatal(err)
	}
	r.Frame([][]rune{[]rune("hello")})
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := bytes.Count(data, []byte("\n")); n != 2 {
		t.Errorf("%d lines written", n)
	}
}
