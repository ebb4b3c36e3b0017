package crawler

import "github.com/PuerkitoBio/goquery"

// ParseDetailPage attaches the description fragments of a detail page to the
// summary it was scheduled for. A missing description container produces an
// empty description rather than an error.
func ParseDetailPage(doc *goquery.Document, summary ListingSummary, sel Selectors) JobRecord {
	sel = sel.withDefaults()
	description := textNodes(doc.Find(sel.DescriptionBlock).First())
	if description == nil {
		description = []string{}
	}
	return JobRecord{
		ListingSummary: summary,
		Description:    description,
	}
}
