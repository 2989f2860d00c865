package convert

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Runner is the production Invoker: one external converter process per call.
type Runner struct {
	program string
	args    []string
}

func NewRunner(program string, args []string) *Runner {
	return &Runner{program: program, args: args}
}

// Invoke launches the converter and blocks until it exits or ctx expires.
//
// The process is started with exec.CommandContext so a deadline forcibly
// terminates it; a timeout is reported as a failure Outcome, not an error.
// stdout is scanned line by line keeping only the last well-formed JSON
// object; stderr is drained to the debug log so a chatty converter cannot
// stall on a full pipe.
func (r *Runner) Invoke(ctx context.Context, req Request) (Outcome, error) {
	args := append(append([]string{}, r.args...), req.URL, string(req.Format), req.JobID)
	cmd := exec.CommandContext(ctx, r.program, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Outcome{}, fmt.Errorf("start converter: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			log.Debug().Str("job_id", req.JobID).Str("converter", sc.Text()).Msg("converter stderr")
		}
	}()

	var resultLine string
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
			resultLine = line
			continue
		}
		if line != "" {
			log.Debug().Str("job_id", req.JobID).Str("converter", line).Msg("converter output")
		}
	}
	scanErr := sc.Err()
	if scanErr != nil {
		// A line beyond the scanner cap aborts the read loop; drain the rest
		// so the process can exit instead of blocking on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}

	wg.Wait()
	waitErr := cmd.Wait()

	if scanErr != nil {
		// Protocol breach, not a timeout: the converter wrote output the
		// result scanner cannot read.
		log.Warn().Err(scanErr).Str("job_id", req.JobID).Msg("converter stdout unreadable")
		return Outcome{Success: false, Error: "no result produced"}, nil
	}

	if ctx.Err() != nil {
		log.Warn().Str("job_id", req.JobID).Msg("converter timed out, process killed")
		return Outcome{Success: false, Error: "timeout"}, nil
	}

	outcome, ok := parseOutcome(resultLine)
	if !ok {
		// The converter crashed or printed garbage; resolve to a failure
		// instead of propagating a parse error.
		if waitErr != nil {
			log.Warn().Err(waitErr).Str("job_id", req.JobID).Msg("converter exited without a result")
		}
		return Outcome{Success: false, Error: "no result produced"}, nil
	}

	if outcome.Success && !validArtifactRef(outcome.ArtifactRef, req.JobID) {
		log.Warn().Str("job_id", req.JobID).Str("filename", outcome.ArtifactRef).
			Msg("converter reported an artifact outside its job namespace")
		return Outcome{Success: false, Error: "converter produced an invalid artifact name"}, nil
	}
	if !outcome.Success && outcome.Error == "" {
		outcome.Error = "conversion failed"
	}

	return outcome, nil
}

// parseOutcome decodes the result line; reports ok=false for anything
// malformed so the caller can synthesize a failure.
func parseOutcome(line string) (Outcome, bool) {
	if line == "" {
		return Outcome{}, false
	}
	var o Outcome
	if err := json.Unmarshal([]byte(line), &o); err != nil {
		return Outcome{}, false
	}
	return o, true
}

// validArtifactRef enforces the deterministic naming contract: the artifact
// is a bare filename prefixed with the job ID, so no two jobs can collide
// and the ref can never escape the artifact directory.
func validArtifactRef(ref, jobID string) bool {
	if ref == "" || strings.ContainsAny(ref, "/\\") || strings.Contains(ref, "..") {
		return false
	}
	rest, ok := strings.CutPrefix(ref, jobID)
	if !ok || rest == "" {
		return false
	}
	return rest[0] == '-' || rest[0] == '.'
}

var _ Invoker = (*Runner)(nil)

// LookPath verifies the configured converter program is executable.
func (r *Runner) LookPath() error {
	if r.program == "" {
		return errors.New("converter program not configured")
	}
	_, err := exec.LookPath(r.program)
	return err
}
