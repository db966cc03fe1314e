package main

import (
	"os"
	"path/filepath"
	"testing"

	log15 "gopkg.in/inconshreveable/log15.v2"
)

func discard() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	return l
}

func TestOpenRuntimeIndex_Backends(t *testing.T) {
	cases := []struct {
		backend string
		disable bool
		wantIdx bool
		wantErr bool
	}{
		{backend: "", wantIdx: true},
		{backend: "sqlite", wantIdx: true},
		{backend: "off"},
		{backend: "sqlite", disable: true},
		{backend: "postgres", wantErr: true},
	}
	for _, tc := range cases {
		t.Setenv("BUILDGEN_INDEX_BACKEND", tc.backend)
		dir := t.TempDir()
		idx, err := openRuntimeIndex(dir, tc.disable, discard())
		if (err != nil) != tc.wantErr {
			t.Fatalf("backend=%q err=%v wantErr=%v", tc.backend, err, tc.wantErr)
		}
		if (idx != nil) != tc.wantIdx {
			t.Fatalf("backend=%q idx=%v want %v", tc.backend, idx != nil, tc.wantIdx)
		}
		if idx == nil {
			continue
		}
		if err := idx.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "index", "buildings.sqlite")); err != nil {
			t.Fatalf("index file: %v", err)
		}
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.2:5000":  false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", in, got, want)
		}
	}
}

func TestBuildMirror_Env(t *testing.T) {
	t.Setenv("BUILDGEN_R2_MIRROR", "")
	m, err := buildMirror(t.TempDir(), discard())
	if err != nil || m != nil {
		t.Fatalf("disabled: m=%v err=%v", m, err)
	}

	t.Setenv("BUILDGEN_R2_MIRROR", "true")
	t.Setenv("BUILDGEN_R2_ENDPOINT", "")
	if _, err := buildMirror(t.TempDir(), discard()); err == nil {
		t.Fatalf("expected error without endpoint")
	}

	t.Setenv("BUILDGEN_R2_ENDPOINT", "r2.example")
	t.Setenv("BUILDGEN_R2_BUCKET", "bk")
	t.Setenv("BUILDGEN_R2_ACCESS_KEY_ID", "a")
	t.Setenv("BUILDGEN_R2_SECRET_ACCESS_KEY", "s")
	m, err = buildMirror(t.TempDir(), discard())
	if err != nil || m == nil {
		t.Fatalf("enabled: m=%v err=%v", m, err)
	}
	m.Close()
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("BUILDGEN_TEST_INT", "x")
	if got := envInt("BUILDGEN_TEST_INT", 3); got != 3 {
		t.Fatalf("envInt=%d", got)
	}
	t.Setenv("BUILDGEN_TEST_BOOL", "1")
	if !envBool("BUILDGEN_TEST_BOOL", false) {
		t.Fatalf("envBool false")
	}
}
