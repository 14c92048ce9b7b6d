package artifact

import (
	"encoding/json"
	"fmt"
	"html"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Bundle is the uniform parse result for one detail page. All sub-documents
// are flattened dotted-key maps; any of them may be empty when the page does
// not carry that artifact.
type Bundle struct {
	DetailURL    string
	CanonicalURL string
	VendorBlob   map[string]string
	JSONLD       map[string]string
	Meta         map[string]string
	DataLayer    map[string]string
	HTML         string
}

var (
	phAppRe     = regexp.MustCompile(`(?s)phApp\.ddo\s*=\s*(\{.*?\});`)
	dataLayerRe = regexp.MustCompile(`(?is)window\.dataLayer\.push\(\{([^)]*?)\}\)`)
	kvPairRe    = regexp.MustCompile(`['"]([^'"]+)['"]\s*:\s*['"]([^'"]*)['"]`)
)

// Extract parses one fetched page into a Bundle. It is a pure function of
// the input: no network access. A non-nil error means a vendor embedded-state
// marker was positively identified but its JSON is corrupt; all other
// sub-extractor failures are logged and leave that field empty.
func Extract(htmlText, requestURL string) (Bundle, error) {
	bundle := Bundle{DetailURL: requestURL, HTML: htmlText}

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if docErr != nil {
		log.Printf("artifact:parse:error url=%s err=%v", requestURL, docErr)
	}

	blob, blobErr := ExtractVendorBlob(htmlText, doc)
	bundle.VendorBlob = blob

	if doc != nil {
		bundle.JSONLD = ExtractJSONLD(doc)
		bundle.Meta = ExtractMeta(doc)
		bundle.CanonicalURL = ExtractCanonicalURL(doc)
	}
	bundle.DataLayer = ExtractDataLayer(htmlText)

	if bundle.CanonicalURL == "" {
		bundle.CanonicalURL = requestURL
	}
	return bundle, blobErr
}

// ExtractVendorBlob looks for source-native embedded state: a phApp.ddo
// assignment first, then a #smartApplyData block. A missing marker is normal
// and returns nil; a present marker with undecodable JSON is an error.
func ExtractVendorBlob(htmlText string, doc *goquery.Document) (map[string]string, error) {
	ddo, err := ExtractEmbeddedState(htmlText)
	if err != nil {
		return nil, err
	}
	if ddo != nil {
		return Flatten(digJob(ddo)), nil
	}

	if doc == nil {
		return nil, nil
	}
	sel := doc.Find("#smartApplyData")
	if sel.Length() == 0 {
		return nil, nil
	}
	raw := html.UnescapeString(sel.First().Text())
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("embedded smartApply state: %w", err)
	}
	return Flatten(data), nil
}

// ExtractEmbeddedState returns the full parsed phApp.ddo document when the
// page carries one. Listing adapters walk it for the jobs array; detail
// extraction digs the single job out of it. nil with no error means no
// marker was found.
func ExtractEmbeddedState(htmlText string) (map[string]any, error) {
	m := phAppRe.FindStringSubmatch(htmlText)
	if m == nil {
		return nil, nil
	}
	var ddo map[string]any
	if err := json.Unmarshal([]byte(m[1]), &ddo); err != nil {
		return nil, fmt.Errorf("embedded phApp state: %w", err)
	}
	return ddo, nil
}

// digJob walks the common nesting shapes embedded state uses for the job
// payload and returns the innermost job object, or the whole blob when no
// known path matches.
func digJob(ddo map[string]any) any {
	paths := [][]string{
		{"jobDetail", "data", "job"},
		{"jobDetail", "job"},
		{"data", "job"},
	}
	for _, path := range paths {
		cur := any(ddo)
		ok := true
		for _, key := range path {
			m, isMap := cur.(map[string]any)
			if !isMap {
				ok = false
				break
			}
			cur, isMap = m[key], true
			if cur == nil {
				ok = false
				break
			}
		}
		if ok {
			if m, isMap := cur.(map[string]any); isMap && len(m) > 0 {
				return m
			}
		}
	}
	return ddo
}

// ExtractJSONLD flattens every application/ld+json block. The first document
// flattens under bare keys; later documents get an index prefix so nothing is
// lost to key collision. Malformed blocks are skipped.
func ExtractJSONLD(doc *goquery.Document) map[string]string {
	out := map[string]string{}
	idx := 0
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		docs := []any{data}
		if arr, ok := data.([]any); ok {
			docs = arr
		}
		for _, d := range docs {
			flat := Flatten(d)
			for k, v := range flat {
				if idx == 0 {
					out[k] = v
				} else {
					out[strconv.Itoa(idx)+"."+k] = v
				}
			}
			idx++
		}
	})
	return out
}

// ExtractMeta maps meta tag name/property to content, first occurrence wins.
// The first h1 rides along under "h1" when present.
func ExtractMeta(doc *goquery.Document) map[string]string {
	out := map[string]string{}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			name, ok = s.Attr("property")
		}
		if !ok || name == "" {
			return
		}
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		if _, seen := out[name]; !seen {
			out[name] = content
		}
	})
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		if txt := strings.TrimSpace(h1.Text()); txt != "" {
			out["h1"] = txt
		}
	}
	return out
}

// ExtractDataLayer scrapes window.dataLayer.push({...}) calls for simple
// string key/value pairs. Best effort only.
func ExtractDataLayer(htmlText string) map[string]string {
	out := map[string]string{}
	for _, m := range dataLayerRe.FindAllStringSubmatch(htmlText, -1) {
		for _, kv := range kvPairRe.FindAllStringSubmatch(m[1], -1) {
			out[kv[1]] = kv[2]
		}
	}
	return out
}

// ExtractCanonicalURL reads <link rel="canonical"> when present.
func ExtractCanonicalURL(doc *goquery.Document) string {
	href := ""
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		if !strings.Contains(strings.ToLower(rel), "canonical") {
			return true
		}
		if h, ok := s.Attr("href"); ok && strings.TrimSpace(h) != "" {
			href = strings.TrimSpace(h)
			return false
		}
		return true
	})
	return href
}
