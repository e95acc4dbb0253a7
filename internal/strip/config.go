package strip

import (
	"net/url"
)

// Config is the immutable per-widget configuration. Produced once at
// construction and never mutated.
type Config struct {
	// ChannelToken identifies the widget installation.
	ChannelToken string

	// BundleInfo carries host bundle metadata merged into the strip
	// surface's query string.
	BundleInfo map[string]string

	// BaseURL is the content origin both surfaces load from.
	BaseURL string

	// StripPath and StoryPath are the fixed endpoint paths.
	StripPath string
	StoryPath string
}

// StripURL builds the strip surface's initial URL: the strip path with
// the channel token and bundle metadata as query parameters.
func (c Config) StripURL() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	u.Path = c.StripPath

	q := url.Values{}
	q.Set("token", c.ChannelToken)
	for k, v := range c.BundleInfo {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// StoryURL builds the story surface's URL. It is token-independent.
func (c Config) StoryURL() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	u.Path = c.StoryPath
	return u.String()
}
