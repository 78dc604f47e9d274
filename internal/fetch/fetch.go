// Package fetch reads the title, description and favicon of a web page so a new
// reading has something better to show than its bare link.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	userAgent  = "Epistolary/v1"
	acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	maxBody    = 2 << 20
)

type Document struct {
	Link        string `json:"link"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Favicon     string `json:"favicon,omitempty"`
}

type HTTPError struct {
	Status string
	Code   int
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("could not fetch document: %s", e.Status)
}

// Fetcher retrieves page metadata.
type Fetcher interface {
	Fetch(ctx context.Context, link string) (*Document, error)
}

type HTMLFetcher struct {
	client *http.Client
}

func New(timeout time.Duration) *HTMLFetcher {
	return &HTMLFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTMLFetcher) Fetch(ctx context.Context, link string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHTML)

	rep, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer rep.Body.Close()

	if rep.StatusCode < 200 || rep.StatusCode >= 300 {
		return nil, HTTPError{Status: rep.Status, Code: rep.StatusCode}
	}

	doc, err := Parse(io.LimitReader(rep.Body, maxBody), rep.Request.URL)
	if err != nil {
		return nil, err
	}
	doc.Link = link
	return doc, nil
}

// Parse extracts the metadata of an HTML document served from base. Without a
// declared icon the favicon defaults to /favicon.ico on the same host.
func Parse(r io.Reader, base *url.URL) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	doc := &Document{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if doc.Title == "" && n.FirstChild != nil {
					doc.Title = collapse(n.FirstChild.Data)
				}
			case "meta":
				if doc.Description == "" && strings.EqualFold(attr(n, "name"), "description") {
					doc.Description = collapse(attr(n, "content"))
				}
			case "link":
				rel := strings.ToLower(attr(n, "rel"))
				if doc.Favicon == "" && (rel == "icon" || rel == "shortcut icon") {
					doc.Favicon = resolve(base, attr(n, "href"))
				}
			case "body":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if doc.Favicon == "" && base != nil {
		doc.Favicon = base.ResolveReference(&url.URL{Path: "/favicon.ico"}).String()
	}
	return doc, nil
}

// Fallback is the document used when a page cannot be fetched: the link's host and
// path stand in for the title.
func Fallback(link string) *Document {
	doc := &Document{Link: link, Title: link}
	if u, err := url.Parse(link); err == nil && u.Host != "" {
		doc.Title = strings.TrimSuffix(u.Host+u.Path, "/")
	}
	return doc
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, href string) string {
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
