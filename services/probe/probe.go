// Package probe answers the small host checks the dashboard widgets poll:
// network latency to a target and the container update status.
package probe

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"flatnas/pkg/logger"

	"github.com/goccy/go-json"
)

var (
	ErrInvalidTarget = errors.New("invalid target")

	targetPattern  = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)
	latencyPattern = regexp.MustCompile(`(?i)(?:time|时间)[=<]([\d.]+) ?ms`)
)

// PingResult is what the latency widget shows.
type PingResult struct {
	Success bool   `json:"success"`
	Latency string `json:"latency"`
	Target  string `json:"target"`
}

// Runner executes one ping and returns its output.
type Runner func(ctx context.Context, target string) ([]byte, error)

type Pinger struct {
	defaultTarget string
	timeout       time.Duration
	run           Runner
}

func NewPinger(defaultTarget string, timeout time.Duration) *Pinger {
	return &Pinger{defaultTarget: defaultTarget, timeout: timeout, run: systemPing}
}

// Ping sends a single echo request to target, or the default target when empty.
func (p *Pinger) Ping(ctx context.Context, target string) (PingResult, error) {
	if target == "" {
		target = p.defaultTarget
	}
	if !targetPattern.MatchString(target) {
		return PingResult{}, ErrInvalidTarget
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := p.run(ctx, target)
	elapsed := time.Since(start)
	if err != nil {
		logger.WithField("target", target).WithError(err).Debug("Ping failed")
		return PingResult{Success: false, Latency: "Timeout", Target: target}, nil
	}

	ms := math.Round(float64(elapsed) / float64(time.Millisecond))
	if m := latencyPattern.FindSubmatch(out); m != nil {
		if v, perr := strconv.ParseFloat(string(m[1]), 64); perr == nil {
			ms = math.Round(v)
		}
	}
	return PingResult{Success: true, Latency: strconv.FormatFloat(ms, 'f', 0, 64) + "ms", Target: target}, nil
}

func systemPing(ctx context.Context, target string) ([]byte, error) {
	args := []string{"-c", "1", "-W", "2", target}
	if runtime.GOOS == "windows" {
		args = []string{"-n", "1", "-w", "2000", target}
	}
	return exec.CommandContext(ctx, "ping", args...).Output()
}

var noUpdate = json.RawMessage(`{"hasUpdate":false}`)

// DockerStatus returns the status document written by the update checker, or
// {"hasUpdate":false} when there is none.
func DockerStatus(path string) json.RawMessage {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.WithField("path", path).WithError(err).Warn("Failed to read docker status")
		}
		return noUpdate
	}
	if !json.Valid(data) {
		return noUpdate
	}
	return json.RawMessage(data)
}
