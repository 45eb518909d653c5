package scraper

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to Rod protocol resource types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// trackerHosts are analytics and ad hosts that never contribute to the table.
var trackerHosts = map[string]struct{}{
	"doubleclick.net":               {},
	"googlesyndication.com":         {},
	"googleadservices.com":          {},
	"google-analytics.com":          {},
	"googletagmanager.com":          {},
	"analytics.google.com":          {},
	"facebook.net":                  {},
	"connect.facebook.net":          {},
	"hotjar.com":                    {},
	"segment.io":                    {},
	"segment.com":                   {},
	"mixpanel.com":                  {},
	"ads-twitter.com":               {},
	"analytics.twitter.com":         {},
	"scorecardresearch.com":         {},
	"quantserve.com":                {},
	"chartbeat.com":                 {},
	"optimizely.com":                {},
	"dap.digitalgov.gov":            {},
	"clarity.ms":                    {},
	"newrelic.com":                  {},
	"nr-data.net":                   {},
	"plausible.io":                  {},
	"cloudflareinsights.com":        {},
	"static.cloudflareinsights.com": {},
}

// requestFilter decides which page requests are failed before they leave the
// browser.
type requestFilter struct {
	types    map[proto.NetworkResourceType]struct{}
	blockAds bool
}

func newRequestFilter(blockedTypes []string, blockAds bool) *requestFilter {
	f := &requestFilter{
		types:    make(map[proto.NetworkResourceType]struct{}, len(blockedTypes)),
		blockAds: blockAds,
	}
	for _, name := range blockedTypes {
		if rt, ok := resourceTypes[name]; ok {
			f.types[rt] = struct{}{}
		}
	}
	return f
}

// active reports whether the filter blocks anything at all.
func (f *requestFilter) active() bool {
	return len(f.types) > 0 || f.blockAds
}

// blocks reports whether a request of type rt to rawURL should be failed.
func (f *requestFilter) blocks(rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := f.types[rt]; ok {
		return true
	}
	if !f.blockAds {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return isTrackerHost(u.Hostname())
}

// isTrackerHost checks host and each parent domain against trackerHosts.
func isTrackerHost(host string) bool {
	host = strings.ToLower(host)
	for host != "" {
		if _, ok := trackerHosts[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
	}
	return false
}

// installHijack routes every page request through f. It returns nil when f
// blocks nothing; otherwise the caller must Stop the returned router.
func installHijack(page *rod.Page, f *requestFilter) *rod.HijackRouter {
	if !f.active() {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if f.blocks(h.Request.Type(), h.Request.URL().String()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()

	return router
}
