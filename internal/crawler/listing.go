package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ParseListingPage extracts one summary per job card plus the next-page link.
// Cards missing a title, link, card id, or location are reported in Dropped
// instead of aborting the page.
func ParseListingPage(doc *goquery.Document, pageURL *url.URL, sel Selectors) ListingPage {
	sel = sel.withDefaults()
	var out ListingPage
	doc.Find(sel.Card).Each(func(i int, card *goquery.Selection) {
		summary, err := parseCard(card, pageURL, sel)
		if err != nil {
			out.Dropped = append(out.Dropped, DroppedCard{Index: i, Reason: err})
			return
		}
		out.Summaries = append(out.Summaries, summary)
	})

	if href, ok := doc.Find(sel.NextPage).Last().Attr("href"); ok && strings.TrimSpace(href) != "" {
		if next, err := ResolveURL(pageURL, href); err == nil {
			out.NextPage = next
		}
	}
	return out
}

func parseCard(card *goquery.Selection, pageURL *url.URL, sel Selectors) (ListingSummary, error) {
	anchor := card.Find(sel.TitleLink).First()
	title, err := requiredAttr(anchor, "title")
	if err != nil {
		return ListingSummary{}, err
	}
	href, err := requiredAttr(anchor, "href")
	if err != nil {
		return ListingSummary{}, err
	}
	rawID, err := requiredAttr(anchor, "id")
	if err != nil {
		return ListingSummary{}, err
	}
	link, err := ResolveURL(pageURL, href)
	if err != nil {
		return ListingSummary{}, fmt.Errorf("%w: link: %v", ErrMissingField, err)
	}

	location := firstText(card.Find(sel.Location))
	if location == "" {
		return ListingSummary{}, fmt.Errorf("%w: location", ErrMissingField)
	}

	return ListingSummary{
		Title:     title,
		Link:      link,
		Company:   extractCompany(card, sel),
		Location:  location,
		RawID:     rawID,
		DerivedID: DerivedID(title, rawID),
	}, nil
}

func requiredAttr(s *goquery.Selection, name string) (string, error) {
	v, ok := s.Attr(name)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	return v, nil
}

// extractCompany reads the company's own text first and falls back to the
// nested link text. Both blank yields an empty company.
func extractCompany(card *goquery.Selection, sel Selectors) string {
	if company := strings.TrimSpace(ownText(card.Find(sel.Company).First())); company != "" {
		return company
	}
	return strings.TrimSpace(card.Find(sel.CompanyFallback).First().Text())
}

// ownText returns the first text node directly under the selection.
func ownText(s *goquery.Selection) string {
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				return c.Data
			}
		}
	}
	return ""
}

// firstText returns the first non-blank descendant text node, trimmed.
func firstText(s *goquery.Selection) string {
	for _, fragment := range textNodes(s) {
		if t := strings.TrimSpace(fragment); t != "" {
			return t
		}
	}
	return ""
}

// textNodes collects every text node under the selection in document order.
func textNodes(s *goquery.Selection) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				out = append(out, c.Data)
			case html.ElementNode:
				walk(c)
			}
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return out
}
