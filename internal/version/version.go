// Package version reports the running build and checks for newer releases.
package version

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/nulzo/ai-sdk-gateway/internal/httpclient"
)

// Version is set at build time with -ldflags "-X .../internal/version.Version=v1.2.3".
var Version = "v0.0.0"

const releasesURL = "https://api.github.com/repos/nulzo/ai-sdk-gateway/releases/latest"

type release struct {
	TagName string `json:"tag_name"`
}

// Checker compares the running version against the latest published release.
type Checker struct {
	URL     string
	Current string
	Client  httpclient.HTTPClient
}

func NewChecker() *Checker {
	return &Checker{
		URL:     releasesURL,
		Current: Version,
		Client:  &http.Client{Timeout: 2 * time.Second},
	}
}

// Latest returns the newest release tag and whether it is ahead of Current.
func (c *Checker) Latest(ctx context.Context) (string, bool, error) {
	current, err := goversion.NewVersion(c.Current)
	if err != nil {
		return "", false, fmt.Errorf("invalid current version %q: %w", c.Current, err)
	}

	var rel release
	if err := httpclient.SendRequest(ctx, c.Client, http.MethodGet, c.URL, nil, nil, &rel); err != nil {
		return "", false, err
	}

	latest, err := goversion.NewVersion(rel.TagName)
	if err != nil {
		return "", false, fmt.Errorf("invalid release tag %q: %w", rel.TagName, err)
	}

	return rel.TagName, current.LessThan(latest), nil
}
