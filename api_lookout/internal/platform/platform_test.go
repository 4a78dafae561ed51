package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"frameworks/api_lookout/internal/fetch"
	"frameworks/api_lookout/internal/page"
)

func fingerprint(t *testing.T, markup string, header http.Header) Info {
	t.Helper()
	d, err := page.ParseString(markup, "https://example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return Fingerprint(d, header)
}

func TestFingerprintWordPress(t *testing.T) {
	markup := `<html><head><meta name="generator" content="WordPress 6.4.2">
<link rel="stylesheet" href="/wp-content/plugins/elementor/assets/css/frontend.min.css">
<script src="/wp-includes/js/jquery/jquery.min.js"></script></head>
<body class="woocommerce-no-js"></body></html>`
	header := http.Header{"Link": {`<https://example.com/wp-json/>; rel="https://api.w.org/"`}}

	info := fingerprint(t, markup, header)
	if info.Platform != "WordPress" || info.Confidence != 100 {
		t.Fatalf("unexpected platform %+v", info)
	}
	want := []string{"Elementor", "WooCommerce", "WordPress", "jQuery"}
	if !reflect.DeepEqual(info.Technologies, want) {
		t.Fatalf("technologies = %v, want %v", info.Technologies, want)
	}
}

func TestFingerprintShopifyFromHeadersAndCookies(t *testing.T) {
	header := http.Header{}
	header.Add("X-ShopId", "12345")
	header.Add("Set-Cookie", "_shopify_y=abc; path=/")
	header.Add("Server", "cloudflare")

	info := fingerprint(t, `<html><body>shop</body></html>`, header)
	if info.Platform != "Shopify" || info.Confidence != 90 {
		t.Fatalf("unexpected platform %+v", info)
	}
	if !reflect.DeepEqual(info.Technologies, []string{"Cloudflare", "Shopify"}) {
		t.Fatalf("unexpected technologies %v", info.Technologies)
	}
}

func TestFingerprintCustom(t *testing.T) {
	info := fingerprint(t, `<html><body><p>hand written</p></body></html>`, nil)
	if info.Platform != PlatformCustom || info.Confidence != 0 || len(info.Technologies) != 0 {
		t.Fatalf("expected custom, got %+v", info)
	}
}

func TestFingerprintPicksStrongestPlatform(t *testing.T) {
	markup := `<html><head><meta name="generator" content="Wix.com Website Builder"></head>
<body><script src="https://static.parastorage.com/x.js"></script><div id="__NEXT_DATA__"></div></body></html>`
	info := fingerprint(t, markup, nil)
	if info.Platform != "Wix" || info.Confidence != 100 {
		t.Fatalf("expected Wix to win, got %+v", info)
	}
}

func TestDetectFetchesHomepage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("X-Powered-By", "Next.js")
		_, _ = w.Write([]byte(`<html><body><script src="/_next/static/chunks/main.js"></script></body></html>`))
	}))
	defer srv.Close()

	client := fetch.NewClient(fetch.ClientConfig{AllowPrivate: true, Timeout: 5 * time.Second})
	info, err := NewDetector(fetch.NewFetcher(client)).Detect(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if info.Platform != "Next.js" || info.Confidence != 100 {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestDetectReportsFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client := fetch.NewClient(fetch.ClientConfig{AllowPrivate: true, Timeout: 5 * time.Second})
	if _, err := NewDetector(fetch.NewFetcher(client)).Detect(context.Background(), srv.URL); !fetch.IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404 status error, got %v", err)
	}
}
