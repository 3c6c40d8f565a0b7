package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runAnalyze(t *testing.T, handler http.HandlerFunc) (string, error) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	path := filepath.Join(t.TempDir(), "rx.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.7"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := analyzeCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--addr", ts.URL, path})
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyze_PrintsChunks(t *testing.T) {
	out, err := runAnalyze(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil || r.MultipartForm.File["file"] == nil {
			t.Errorf("upload not sent as multipart file: %v", err)
		}
		fmt.Fprint(w, `data: {"type":"metadata","filename":"rx.pdf"}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"chunk","content":"Take "}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"chunk","content":"daily."}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"done","filename":"rx.pdf"}`+"\n\n")
	})
	if err != nil {
		t.Fatalf("analyze error = %v", err)
	}
	if out != "Take daily.\n" {
		t.Errorf("output = %q", out)
	}
}

func TestAnalyze_ErrorRecord(t *testing.T) {
	_, err := runAnalyze(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `data: {"type":"metadata"}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"error","error":"API quota exceeded.","code":"quota_exceeded"}`+"\n\n")
	})
	if err == nil || !strings.Contains(err.Error(), "quota_exceeded") {
		t.Errorf("error = %v, want quota_exceeded", err)
	}
}

func TestAnalyze_Rejected(t *testing.T) {
	_, err := runAnalyze(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"File size exceeds 25MB limit","code":"payload_too_large"}`)
	})
	if err == nil || !strings.Contains(err.Error(), "payload_too_large") {
		t.Errorf("error = %v", err)
	}
}

func TestAnalyze_Truncated(t *testing.T) {
	_, err := runAnalyze(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `data: {"type":"metadata"}`+"\n\n")
	})
	if err == nil {
		t.Error("expected error for stream without terminal record")
	}
}
