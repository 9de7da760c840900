package version

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// UserAgent is sent with every remote version query.
const UserAgent = "hudo/1.0"

// Source discovers the latest available version of a tool.
type Source interface {
	Latest(ctx context.Context) (string, error)
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

// GitHubSource reads tag_name from the GitHub "latest release" endpoint.
type GitHubSource struct {
	API  string // defaults to https://api.github.com
	Repo string // owner/name
	// Parse converts a tag into a version; nil strips a leading "v".
	Parse func(tag string) string
}

type githubRelease struct {
	TagName string `json:"tag_name"`
}

func (s GitHubSource) Latest(ctx context.Context) (string, error) {
	api := strings.TrimRight(s.API, "/")
	if api == "" {
		api = "https://api.github.com"
	}
	endpoint := fmt.Sprintf("%s/repos/%s/releases/latest", api, s.Repo)

	var release githubRelease
	if err := getJSON(ctx, endpoint, &release); err != nil {
		return "", err
	}
	tag := strings.TrimSpace(release.TagName)
	if tag == "" {
		return "", fmt.Errorf("%s: empty tag_name", s.Repo)
	}
	parse := s.Parse
	if parse == nil {
		parse = func(tag string) string { return strings.TrimPrefix(tag, "v") }
	}
	return validVersion(parse(tag), endpoint)
}

// GoSource reads the newest stable release from the go.dev download index.
type GoSource struct {
	URL string // defaults to https://go.dev/dl/?mode=json
}

func (s GoSource) Latest(ctx context.Context) (string, error) {
	endpoint := s.URL
	if endpoint == "" {
		endpoint = "https://go.dev/dl/?mode=json"
	}
	var releases []struct {
		Version string `json:"version"`
		Stable  bool   `json:"stable"`
	}
	if err := getJSON(ctx, endpoint, &releases); err != nil {
		return "", err
	}
	for _, r := range releases {
		if r.Stable || len(releases) == 1 {
			return validVersion(strings.TrimPrefix(r.Version, "go"), endpoint)
		}
	}
	return "", fmt.Errorf("%s: no stable release listed", endpoint)
}

// PostgresSource reads the current major's latest minor from versions.json.
type PostgresSource struct {
	URL string // defaults to https://www.postgresql.org/versions.json
}

func (s PostgresSource) Latest(ctx context.Context) (string, error) {
	endpoint := s.URL
	if endpoint == "" {
		endpoint = "https://www.postgresql.org/versions.json"
	}
	var versions []struct {
		Major       string `json:"major"`
		LatestMinor string `json:"latestMinor"`
		Current     bool   `json:"current"`
	}
	if err := getJSON(ctx, endpoint, &versions); err != nil {
		return "", err
	}
	for _, v := range versions {
		if v.Current {
			return validVersion(v.Major+"."+v.LatestMinor, endpoint)
		}
	}
	return "", fmt.Errorf("%s: no current major", endpoint)
}

// GradleSource reads the current release from services.gradle.org.
type GradleSource struct {
	URL string // defaults to https://services.gradle.org/versions/current
}

func (s GradleSource) Latest(ctx context.Context) (string, error) {
	endpoint := s.URL
	if endpoint == "" {
		endpoint = "https://services.gradle.org/versions/current"
	}
	var current struct {
		Version string `json:"version"`
	}
	if err := getJSON(ctx, endpoint, &current); err != nil {
		return "", err
	}
	return validVersion(current.Version, endpoint)
}

// JetBrainsSource reads the newest release of a product from the JetBrains
// releases feed.
type JetBrainsSource struct {
	URL  string // defaults to https://data.services.jetbrains.com/products/releases
	Code string // product code, e.g. "PCC" for PyCharm Community
}

func (s JetBrainsSource) Latest(ctx context.Context) (string, error) {
	base := s.URL
	if base == "" {
		base = "https://data.services.jetbrains.com/products/releases"
	}
	endpoint := fmt.Sprintf("%s?code=%s&latest=true&type=release", base, s.Code)
	var feed map[string][]struct {
		Version string `json:"version"`
	}
	if err := getJSON(ctx, endpoint, &feed); err != nil {
		return "", err
	}
	releases := feed[s.Code]
	if len(releases) == 0 {
		return "", fmt.Errorf("%s: no %s release listed", endpoint, s.Code)
	}
	return validVersion(releases[0].Version, endpoint)
}

func getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: %s", endpoint, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func validVersion(v, endpoint string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" || v[0] < '0' || v[0] > '9' {
		return "", fmt.Errorf("%s: malformed version %q", endpoint, v)
	}
	return v, nil
}
