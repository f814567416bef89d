package config

import (
	"net/url"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/infra/fetcher"
	"github.com/docpack/docpack/pkg/infra/roster"
	"github.com/docpack/docpack/pkg/usecase"
)

// Upstream holds the roster API and document fetch configuration
type Upstream struct {
	URL          string
	Timeout      time.Duration
	FetchTimeout time.Duration
	DisplayField string
	EmailField   string
}

// Flags returns CLI flags for upstream configuration
func (c *Upstream) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "upstream-url",
			Usage:       "URL of the roster API returning the student submissions array",
			Required:    true,
			Destination: &c.URL,
			Sources:     cli.EnvVars("DOCPACK_UPSTREAM_URL"),
		},
		&cli.DurationFlag{
			Name:        "upstream-timeout",
			Usage:       "Timeout of one roster request",
			Value:       30 * time.Second,
			Destination: &c.Timeout,
			Sources:     cli.EnvVars("DOCPACK_UPSTREAM_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:        "fetch-timeout",
			Usage:       "Timeout of one document download including its body",
			Value:       60 * time.Second,
			Destination: &c.FetchTimeout,
			Sources:     cli.EnvVars("DOCPACK_FETCH_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:        "display-field",
			Usage:       "Form field holding the student name, used for folder names",
			Value:       usecase.DefaultDisplayField,
			Destination: &c.DisplayField,
			Sources:     cli.EnvVars("DOCPACK_DISPLAY_FIELD"),
		},
		&cli.StringFlag{
			Name:        "email-field",
			Usage:       "Form field holding the student email, used for search",
			Value:       usecase.DefaultEmailField,
			Destination: &c.EmailField,
			Sources:     cli.EnvVars("DOCPACK_EMAIL_FIELD"),
		},
	}
}

// NewRosterClient creates the uncached roster client
func (c *Upstream) NewRosterClient() (interfaces.RosterClient, error) {
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, goerr.New("upstream-url must be an absolute http(s) URL", goerr.V("url", c.URL))
	}
	return roster.NewClient(c.URL, roster.WithTimeout(c.Timeout)), nil
}

// NewFetcher creates the document fetcher
func (c *Upstream) NewFetcher() interfaces.FileFetcher {
	return fetcher.New(fetcher.WithTimeout(c.FetchTimeout))
}
