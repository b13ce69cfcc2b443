package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"dvr/internal/config"
	"dvr/internal/deps"
)

const networkCheckTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFFmpeg wraps deps.CheckFFmpeg as a preflight result.
func CheckFFmpeg(ctx context.Context, binary string) Result {
	status := deps.CheckFFmpeg(ctx, binary)
	if !status.Available {
		return Result{Name: status.Name, Detail: status.Detail}
	}
	detail := status.Command
	if status.Detail != "" {
		detail = status.Detail
	}
	return Result{Name: status.Name, Passed: true, Detail: detail}
}

// CheckSystemDeps lists the external binaries the daemon needs. The daemon
// status and the CLI share it so the requirement list lives in one place.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return []deps.Status{deps.CheckFFmpeg(ctx, cfg.Recorder.FFmpegBinary)}
}

type xtreamAuth struct {
	UserInfo struct {
		Auth           int    `json:"auth"`
		Status         string `json:"status"`
		MaxConnections string `json:"max_connections"`
	} `json:"user_info"`
}

// CheckXtreamSource verifies the provider answers player_api.php and accepts
// the configured credentials.
func CheckXtreamSource(ctx context.Context, src config.Source) Result {
	name := "Source " + src.ID

	base := strings.TrimRight(strings.TrimSpace(src.BaseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base_url"}
	}
	if src.Username == "" || src.Password == "" {
		return Result{Name: name, Detail: "missing credentials"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, networkCheckTimeout)
	defer cancel()

	query := url.Values{"username": {src.Username}, "password": {src.Password}}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/player_api.php?"+query.Encode(), nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%v)", err)}
	}
	resp, err := (&http.Client{Timeout: networkCheckTimeout}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid credentials)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%d)", resp.StatusCode)}
	}

	var payload xtreamAuth
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{Name: name, Detail: "unexpected player_api response"}
	}
	if payload.UserInfo.Auth != 1 {
		return Result{Name: name, Detail: "auth failed (invalid credentials)"}
	}
	if status := payload.UserInfo.Status; status != "" && !strings.EqualFold(status, "active") {
		return Result{Name: name, Detail: fmt.Sprintf("account %s", strings.ToLower(status))}
	}
	detail := "Reachable"
	if mc := payload.UserInfo.MaxConnections; mc != "" {
		detail = fmt.Sprintf("Reachable (max connections %s)", mc)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckNtfy verifies the ntfy server behind topicURL answers HTTP.
func CheckNtfy(ctx context.Context, topicURL string) Result {
	const name = "ntfy"

	u, err := url.Parse(strings.TrimSpace(topicURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Result{Name: name, Detail: "invalid topic url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, networkCheckTimeout)
	defer cancel()

	health := url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/v1/health"}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, health.String(), nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	resp, err := (&http.Client{Timeout: networkCheckTimeout}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

func summarizeNetworkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (host unreachable)"
	}
	return fmt.Sprintf("unreachable (%v)", err)
}
