package sitemap

import (
	"encoding/xml"
	"fmt"
)

// Namespace is the sitemap protocol XML namespace
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

const (
	changeFreq = "weekly"
	priority   = "0.8"
)

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc        string `xml:"loc"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Xmlns    string       `xml:"xmlns,attr"`
	Sitemaps []indexEntry `xml:"sitemap"`
}

type indexEntry struct {
	Loc string `xml:"loc"`
}

// RenderURLSet renders a <urlset> document for locs
func RenderURLSet(locs []string) ([]byte, error) {
	set := urlSet{Xmlns: Namespace, URLs: make([]urlEntry, 0, len(locs))}
	for _, loc := range locs {
		set.URLs = append(set.URLs, urlEntry{Loc: loc, ChangeFreq: changeFreq, Priority: priority})
	}
	return render(set)
}

// RenderIndex renders a <sitemapindex> document for locs
func RenderIndex(locs []string) ([]byte, error) {
	index := sitemapIndex{Xmlns: Namespace, Sitemaps: make([]indexEntry, 0, len(locs))}
	for _, loc := range locs {
		index.Sitemaps = append(index.Sitemaps, indexEntry{Loc: loc})
	}
	return render(index)
}

func render(v interface{}) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render sitemap XML: %w", err)
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}
