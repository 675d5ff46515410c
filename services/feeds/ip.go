package feeds

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"flatnas/config"

	"github.com/goccy/go-json"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// IPResult is the public address of the server as reported by the first
// upstream that answers.
type IPResult struct {
	Success  bool   `json:"success"`
	IP       string `json:"ip"`
	Location string `json:"location"`
	Source   string `json:"source"`
	ClientIP string `json:"clientIp"`
}

// LookupIP walks the configured sources in order and falls back to the
// client's own address when none answers.
func (s *Service) LookupIP(ctx context.Context, clientIP string) IPResult {
	clientIP = normalizeClientIP(clientIP)

	for _, src := range s.cfg.IPSources {
		var ip, location string
		err := s.guard("ip", "ip:"+src.Kind, func() error {
			var ferr error
			ip, location, ferr = s.queryIPSource(ctx, src)
			return ferr
		})
		if err == nil && ip != "" {
			return IPResult{Success: true, IP: ip, Location: location, Source: src.Kind, ClientIP: clientIP}
		}
	}

	return IPResult{Success: false, IP: clientIP, Location: "Unknown", Source: "fallback", ClientIP: clientIP}
}

func (s *Service) queryIPSource(ctx context.Context, src config.IPSource) (string, string, error) {
	ctx, cancel := s.withTimeout(ctx, s.cfg.MetaTimeout)
	defer cancel()

	body, err := s.get(ctx, src.URL, nil)
	if err != nil {
		return "", "", err
	}
	if src.Kind == "pconline" {
		if body, err = simplifiedchinese.GBK.NewDecoder().Bytes(body); err != nil {
			return "", "", fmt.Errorf("decode gbk: %w", err)
		}
	}
	body = bytes.TrimSpace(body)

	switch src.Kind {
	case "pconline":
		var r struct {
			IP   string `json:"ip"`
			Addr string `json:"addr"`
			Pro  string `json:"pro"`
			City string `json:"city"`
		}
		if err := json.Unmarshal(body, &r); err != nil {
			return "", "", err
		}
		location := strings.TrimSpace(r.Addr)
		if location == "" {
			location = r.Pro + r.City
		}
		return r.IP, location, nil

	case "baidu":
		var r struct {
			IP   string `json:"ip"`
			Data struct {
				Prov string `json:"prov"`
				City string `json:"city"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &r); err != nil {
			return "", "", err
		}
		return r.IP, strings.TrimSpace(r.Data.Prov + " " + r.Data.City), nil

	case "ipapi":
		var r struct {
			IP   string `json:"ip"`
			City string `json:"city"`
		}
		if err := json.Unmarshal(body, &r); err != nil {
			return "", "", err
		}
		return r.IP, r.City, nil
	}
	return "", "", fmt.Errorf("unsupported ip source %q", src.Kind)
}

func normalizeClientIP(ip string) string {
	if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = ip[:i]
	}
	ip = strings.TrimSpace(ip)
	return strings.TrimPrefix(ip, "::ffff:")
}
