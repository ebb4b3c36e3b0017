package crawler

// Selectors holds the structural patterns used by both page parsers.
type Selectors struct {
	Card             string `mapstructure:"card"`
	TitleLink        string `mapstructure:"title_link"`
	Company          string `mapstructure:"company"`
	CompanyFallback  string `mapstructure:"company_fallback"`
	Location         string `mapstructure:"location"`
	NextPage         string `mapstructure:"next_page"`
	DescriptionBlock string `mapstructure:"description"`
}

// DefaultSelectors matches the job board's search and detail markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Card:             "div.jobsearch-SerpJobCard",
		TitleLink:        "div.title > a",
		Company:          "span.company",
		CompanyFallback:  "span.company > a",
		Location:         ".location",
		NextPage:         ".pagination > a:last-of-type",
		DescriptionBlock: "div.jobsearch-jobDescriptionText",
	}
}

// withDefaults fills blank selectors from DefaultSelectors.
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.Card == "" {
		s.Card = d.Card
	}
	if s.TitleLink == "" {
		s.TitleLink = d.TitleLink
	}
	if s.Company == "" {
		s.Company = d.Company
	}
	if s.CompanyFallback == "" {
		s.CompanyFallback = d.CompanyFallback
	}
	if s.Location == "" {
		s.Location = d.Location
	}
	if s.NextPage == "" {
		s.NextPage = d.NextPage
	}
	if s.DescriptionBlock == "" {
		s.DescriptionBlock = d.DescriptionBlock
	}
	return s
}
