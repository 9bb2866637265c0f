package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/earshot-audio/earshot/internal/types"
)

// Build metadata, overridden via -ldflags at release time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const (
	githubRepo           = "earshot-audio/earshot"
	versionCheckInterval = 24 * time.Hour
	versionCheckDelay    = 30 * time.Second // avoid competing with startup
	versionCheckTimeout  = 30 * time.Second
)

// VersionChecker periodically looks for a newer upstream release. It is safe
// for concurrent use.
type VersionChecker struct {
	mu     sync.RWMutex
	latest string
	stopCh chan struct{}
}

// NewVersionChecker starts the background check loop.
func NewVersionChecker() *VersionChecker {
	vc := &VersionChecker{stopCh: make(chan struct{})}
	go vc.run()
	return vc
}

// Stop stops the background loop.
func (vc *VersionChecker) Stop() {
	close(vc.stopCh)
}

func (vc *VersionChecker) run() {
	select {
	case <-time.After(versionCheckDelay):
	case <-vc.stopCh:
		return
	}
	vc.check()

	ticker := time.NewTicker(versionCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			vc.check()
		case <-vc.stopCh:
			return
		}
	}
}

// check fetches the latest release tag from GitHub. Failures are silent; the
// next tick tries again.
func (vc *VersionChecker) check() {
	ctx, cancel := context.WithTimeout(context.Background(), versionCheckTimeout)
	defer cancel()

	url := "https://api.github.com/repos/" + githubRepo + "/releases/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "earshot/"+Version)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Debug("version check failed", "error", err)
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return
	}

	var release struct {
		TagName    string `json:"tag_name"`
		Draft      bool   `json:"draft"`
		Prerelease bool   `json:"prerelease"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil || release.Draft || release.Prerelease {
		return
	}

	vc.mu.Lock()
	vc.latest = strings.TrimPrefix(release.TagName, "v")
	vc.mu.Unlock()
}

// Info returns the running version and whether a newer release exists.
func (vc *VersionChecker) Info() types.VersionInfo {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	current := strings.TrimPrefix(Version, "v")
	info := types.VersionInfo{Current: current, Latest: vc.latest}
	if vc.latest != "" && current != "dev" {
		info.UpdateAvail = semver.Compare("v"+vc.latest, "v"+current) > 0
	}
	return info
}
