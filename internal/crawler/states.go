package crawler

// USStates lists the 50 state codes plus DC, one search seed each.
var USStates = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DC", "DE", "FL", "GA",
	"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
	"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
	"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
}

// DefaultStates returns a copy of USStates so callers can't mutate the seed list.
func DefaultStates() []string {
	out := make([]string, len(USStates))
	copy(out, USStates)
	return out
}
