package convert

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestParseOutcome(t *testing.T) {
	cases := []struct {
		name string
		line string
		ok   bool
		want Outcome
	}{
		{
			name: "success",
			line: `{"success":true,"title":"A Song","filename":"job1.mp3"}`,
			ok:   true,
			want: Outcome{Success: true, Title: "A Song", ArtifactRef: "job1.mp3"},
		},
		{
			name: "failure",
			line: `{"success":false,"error":"video unavailable"}`,
			ok:   true,
			want: Outcome{Success: false, Error: "video unavailable"},
		},
		{name: "empty", line: "", ok: false},
		{name: "garbage", line: "not json at all", ok: false},
		{name: "truncated", line: `{"success":true,`, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseOutcome(tc.line)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("outcome = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestValidArtifactRef(t *testing.T) {
	const jobID = "9b1deb4d"
	cases := []struct {
		ref  string
		want bool
	}{
		{"9b1deb4d.mp3", true},
		{"9b1deb4d-My Song.mp3", true},
		{"", false},
		{"9b1deb4d", false},
		{"9b1deb4dX.mp3", false},
		{"other.mp3", false},
		{"../9b1deb4d.mp3", false},
		{"sub/9b1deb4d.mp3", false},
		{"9b1deb4d-..mp3", false},
		{"9b1deb4d-a\\b.mp3", false},
	}
	for _, tc := range cases {
		if got := validArtifactRef(tc.ref, jobID); got != tc.want {
			t.Errorf("validArtifactRef(%q) = %v, want %v", tc.ref, got, tc.want)
		}
	}
}

// writeScript drops an executable shell script to stand in for the
// converter program.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures")
	}
	path := filepath.Join(t.TempDir(), "converter.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestInvokeSuccess(t *testing.T) {
	script := writeScript(t, `
url="$1"; format="$2"; jobid="$3"
echo "fetching $url" >&2
echo "progress 50%"
echo "{\"success\":true,\"title\":\"Test Track\",\"filename\":\"$jobid.$format\"}"
`)
	r := NewRunner(script, nil)

	out, err := r.Invoke(context.Background(), Request{
		URL: "https://youtu.be/abc", Format: "mp3", JobID: "job42",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	want := Outcome{Success: true, Title: "Test Track", ArtifactRef: "job42.mp3"}
	if out != want {
		t.Fatalf("outcome = %+v, want %+v", out, want)
	}
}

func TestInvokeKeepsLastJSONLine(t *testing.T) {
	script := writeScript(t, `
echo "{\"success\":false,\"error\":\"stale\"}"
echo "{\"success\":true,\"title\":\"Final\",\"filename\":\"$3.mp3\"}"
`)
	r := NewRunner(script, nil)

	out, err := r.Invoke(context.Background(), Request{URL: "u", Format: "mp3", JobID: "j1"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !out.Success || out.Title != "Final" {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestInvokeNoResultLine(t *testing.T) {
	script := writeScript(t, `
echo "working..."
exit 1
`)
	r := NewRunner(script, nil)

	out, err := r.Invoke(context.Background(), Request{URL: "u", Format: "mp3", JobID: "j1"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out.Success || out.Error != "no result produced" {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestInvokeFailureWithoutMessage(t *testing.T) {
	script := writeScript(t, `echo "{\"success\":false}"`)
	r := NewRunner(script, nil)

	out, err := r.Invoke(context.Background(), Request{URL: "u", Format: "mp3", JobID: "j1"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out.Success || out.Error != "conversion failed" {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestInvokeRejectsForeignArtifact(t *testing.T) {
	script := writeScript(t, `echo "{\"success\":true,\"title\":\"T\",\"filename\":\"../../etc/passwd\"}"`)
	r := NewRunner(script, nil)

	out, err := r.Invoke(context.Background(), Request{URL: "u", Format: "mp3", JobID: "j1"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out.Success {
		t.Fatalf("traversal artifact accepted: %+v", out)
	}
}

func TestInvokeOversizedOutputLine(t *testing.T) {
	// A single stdout line past the scanner cap must resolve as a protocol
	// failure, not hang until the deadline and report a timeout.
	script := writeScript(t, `
head -c 2000000 /dev/zero | tr '\0' 'x'
echo
echo "{\"success\":true,\"title\":\"T\",\"filename\":\"$3.mp3\"}"
`)
	r := NewRunner(script, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	out, err := r.Invoke(ctx, Request{URL: "u", Format: "mp3", JobID: "j1"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out.Success || out.Error != "no result produced" {
		t.Fatalf("outcome = %+v", out)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatalf("oversized line stalled the runner until the deadline")
	}
}

func TestInvokeTimeout(t *testing.T) {
	script := writeScript(t, `exec sleep 10`)
	r := NewRunner(script, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	out, err := r.Invoke(ctx, Request{URL: "u", Format: "mp3", JobID: "j1"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out.Success || out.Error != "timeout" {
		t.Fatalf("outcome = %+v", out)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("process not killed on deadline")
	}
}

func TestInvokeMissingProgram(t *testing.T) {
	r := NewRunner(filepath.Join(t.TempDir(), "does-not-exist"), nil)
	if _, err := r.Invoke(context.Background(), Request{URL: "u", Format: "mp3", JobID: "j1"}); err == nil {
		t.Fatalf("expected start error for missing program")
	}
}

func TestInvokePassesArguments(t *testing.T) {
	script := writeScript(t, `
echo "{\"success\":true,\"title\":\"$1 $2 $3 $4\",\"filename\":\"$4.mp3\"}"
`)
	r := NewRunner(script, []string{"--quiet"})

	out, err := r.Invoke(context.Background(), Request{
		URL: "https://youtu.be/x", Format: "mp3", JobID: "j9",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out.Title != "--quiet https://youtu.be/x mp3 j9" {
		t.Fatalf("argv order wrong: %q", out.Title)
	}
}
