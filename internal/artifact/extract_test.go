package artifact

import (
	"strings"
	"testing"
)

const phenomDetailPage = `<html><head>
<link rel="canonical" href="https://careers.example.com/job/123/engineer">
<meta property="og:title" content="Staff Engineer">
<meta name="description" content="meta desc">
<script type="application/ld+json">{"@type":"JobPosting","title":"Staff Engineer","datePosted":"2026-02-01"}</script>
</head><body>
<h1>Staff Engineer</h1>
<script>
phApp.ddo = {"jobDetail":{"data":{"job":{"jobId":"R123","title":"Staff Engineer","city":"Austin","state":"TX"}}}};
</script>
</body></html>`

func TestExtract_VendorBlobPreferred(t *testing.T) {
	bundle, err := Extract(phenomDetailPage, "https://careers.example.com/job/123/engineer?src=x")
	if err != nil {
		t.Fatalf("extract error: %v", err)
	}
	if bundle.VendorBlob["jobId"] != "R123" {
		t.Fatalf("vendor blob jobId = %q", bundle.VendorBlob["jobId"])
	}
	if bundle.VendorBlob["city"] != "Austin" {
		t.Fatalf("vendor blob city = %q", bundle.VendorBlob["city"])
	}
	if bundle.JSONLD["datePosted"] != "2026-02-01" {
		t.Fatalf("jsonld datePosted = %q", bundle.JSONLD["datePosted"])
	}
	if bundle.Meta["og:title"] != "Staff Engineer" {
		t.Fatalf("meta og:title = %q", bundle.Meta["og:title"])
	}
	if bundle.Meta["h1"] != "Staff Engineer" {
		t.Fatalf("meta h1 = %q", bundle.Meta["h1"])
	}
	if bundle.CanonicalURL != "https://careers.example.com/job/123/engineer" {
		t.Fatalf("canonical = %q", bundle.CanonicalURL)
	}
}

func TestExtract_MalformedVendorBlobIsError(t *testing.T) {
	page := `<html><body><script>phApp.ddo = {"broken": };</script></body></html>`
	bundle, err := Extract(page, "https://x.example.com/job/1")
	if err == nil {
		t.Fatal("expected error for malformed embedded state")
	}
	// The rest of the bundle still comes back usable.
	if bundle.DetailURL != "https://x.example.com/job/1" {
		t.Fatalf("detail url = %q", bundle.DetailURL)
	}
	if bundle.HTML == "" {
		t.Fatal("expected html kept on partial bundle")
	}
}

func TestExtract_MissingMarkersIsNotError(t *testing.T) {
	page := `<html><body><p>plain page</p></body></html>`
	bundle, err := Extract(page, "https://x.example.com/job/2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bundle.VendorBlob) != 0 {
		t.Fatalf("expected empty vendor blob, got %v", bundle.VendorBlob)
	}
	if bundle.CanonicalURL != "https://x.example.com/job/2" {
		t.Fatalf("canonical falls back to request url, got %q", bundle.CanonicalURL)
	}
}

func TestExtractVendorBlob_SmartApplyFallback(t *testing.T) {
	page := `<html><body><script id="smartApplyData" type="application/json">{&quot;jobId&quot;:&quot;SA-9&quot;,&quot;title&quot;:&quot;Analyst&quot;}</script></body></html>`
	bundle, err := Extract(page, "https://x.example.com/job/3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bundle.VendorBlob["jobId"] != "SA-9" {
		t.Fatalf("smartApply jobId = %q", bundle.VendorBlob["jobId"])
	}
}

func TestExtractJSONLD_MultipleDocs(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">{"title":"First","datePosted":"2026-01-01"}</script>
<script type="application/ld+json">{"title":"Second"}</script>
</head><body></body></html>`
	bundle, err := Extract(page, "https://x.example.com/job/4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bundle.JSONLD["title"] != "First" {
		t.Fatalf("first doc title = %q", bundle.JSONLD["title"])
	}
	if bundle.JSONLD["1.title"] != "Second" {
		t.Fatalf("second doc title = %q", bundle.JSONLD["1.title"])
	}
}

func TestExtractDataLayer(t *testing.T) {
	page := `<html><body><script>
window.dataLayer.push({'event': 'jobView', 'jobCategory': 'Engineering'})
</script></body></html>`
	got := ExtractDataLayer(page)
	if got["jobCategory"] != "Engineering" {
		t.Fatalf("dataLayer jobCategory = %q", got["jobCategory"])
	}
}

func TestExtractMeta_FirstWins(t *testing.T) {
	page := `<html><head>
<meta name="description" content="first">
<meta name="description" content="second">
</head><body></body></html>`
	bundle, err := Extract(page, "https://x.example.com/job/5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bundle.Meta["description"] != "first" {
		t.Fatalf("meta description = %q", bundle.Meta["description"])
	}
	if strings.Contains(bundle.Meta["description"], "second") {
		t.Fatal("later duplicate overwrote first value")
	}
}
