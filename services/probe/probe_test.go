package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakePinger(out string, err error) (*Pinger, *string) {
	var seen string
	p := NewPinger("8.8.8.8", time.Second)
	p.run = func(ctx context.Context, target string) ([]byte, error) {
		seen = target
		return []byte(out), err
	}
	return p, &seen
}

func TestPing_ParsesLatency(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"linux", "64 bytes from 1.1.1.1: icmp_seq=1 ttl=57 time=12.6 ms", "13ms"},
		{"windows", "Reply from 1.1.1.1: bytes=32 time<1ms TTL=57", "1ms"},
		{"chinese locale", "来自 1.1.1.1 的回复: 字节=32 时间=7ms TTL=57", "7ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := fakePinger(tt.output, nil)
			res, err := p.Ping(context.Background(), "1.1.1.1")
			require.NoError(t, err)
			assert.Equal(t, PingResult{Success: true, Latency: tt.want, Target: "1.1.1.1"}, res)
		})
	}
}

func TestPing_DefaultTargetAndFailure(t *testing.T) {
	p, seen := fakePinger("", errors.New("exit status 1"))

	res, err := p.Ping(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8", *seen)
	assert.Equal(t, PingResult{Success: false, Latency: "Timeout", Target: "8.8.8.8"}, res)
}

func TestPing_RejectsInjection(t *testing.T) {
	p, seen := fakePinger("", nil)
	for _, target := range []string{"1.1.1.1; rm -rf /", "$(id)", "host name", "a|b"} {
		_, err := p.Ping(context.Background(), target)
		assert.ErrorIs(t, err, ErrInvalidTarget, target)
	}
	assert.Empty(t, *seen)
}

func TestDockerStatus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docker-status.json")

	assert.JSONEq(t, `{"hasUpdate":false}`, string(DockerStatus(path)))

	require.NoError(t, os.WriteFile(path, []byte(`{"hasUpdate":true,"latest":"1.2.0"}`), 0o644))
	assert.JSONEq(t, `{"hasUpdate":true,"latest":"1.2.0"}`, string(DockerStatus(path)))

	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o644))
	assert.JSONEq(t, `{"hasUpdate":false}`, string(DockerStatus(path)))
}
