package config

// Heuristics holds the string lists the reconciliation pipeline matches
// against. They are data, not code, so operators can tune them in YAML.
type Heuristics struct {
	Gazetteer Gazetteer    `yaml:"gazetteer"`
	Trust     TrustRules   `yaml:"trust"`
	Scoring   ScoringRules `yaml:"scoring"`
}

// Gazetteer maps a canonical region name (lowercase) to the place and venue
// substrings that count as being in that region.
type Gazetteer struct {
	Regions   map[string][]string `yaml:"regions"`
	Wildcards []string            `yaml:"wildcards"`
}

// Places returns every place substring across all regions.
func (g Gazetteer) Places() []string {
	var out []string
	for region, places := range g.Regions {
		out = append(out, region)
		out = append(out, places...)
	}
	return out
}

type TrustRules struct {
	DeniedTitles    []string `yaml:"denied_titles"`
	TrustedDomains  []string `yaml:"trusted_domains"`
	RecurringTitles []string `yaml:"recurring_titles"`
}

type ScoringRules struct {
	MajorVenues    []string `yaml:"major_venues"`
	LargeGathering []string `yaml:"large_gathering"`
	VendorKeywords []string `yaml:"vendor_keywords"`
	StopWords      []string `yaml:"stop_words"`
	Weights        Weights  `yaml:"weights"`
}

// Weights are the linear coefficients of the composite relevance score.
type Weights struct {
	Base      float64 `yaml:"base"`
	Region    float64 `yaml:"region"`
	Keyword   float64 `yaml:"keyword"`
	Notes     float64 `yaml:"notes"`
	Pin       float64 `yaml:"pin"`
	Footfall  float64 `yaml:"footfall"`
	VendorFit float64 `yaml:"vendor_fit"`
}

// DefaultWeights returns the standard weighting. Keyword overlap dominates.
func DefaultWeights() Weights {
	return Weights{
		Base:      1.0,
		Region:    1.5,
		Keyword:   3.0,
		Notes:     1.0,
		Pin:       1.0,
		Footfall:  0.3,
		VendorFit: 0.2,
	}
}

// DefaultHeuristics returns the built-in lists used when the config file
// does not override them.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		Gazetteer: Gazetteer{
			Wildcards: []string{"uk", "all", "united kingdom", "anywhere"},
			Regions: map[string][]string{
				"london": {
					"london", "excel", "olympia", "alexandra palace", "southbank", "westfield",
					"stratford", "camden", "greenwich", "shoreditch", "spitalfields", "battersea",
					"earls court", "wembley", "hackney", "islington", "borough market",
				},
				"kent": {
					"kent", "detling", "bluewater", "maidstone", "canterbury", "ashford",
					"tunbridge wells", "sevenoaks", "margate", "folkestone", "dover", "rochester",
					"chatham", "dartford", "whitstable", "broadstairs", "medway",
				},
				"essex":      {"essex", "lakeside", "chelmsford", "colchester", "southend", "basildon", "thurrock"},
				"surrey":     {"surrey", "guildford", "woking", "epsom", "sandown", "kingston"},
				"sussex":     {"sussex", "brighton", "hove", "eastbourne", "chichester", "crawley", "goodwood"},
				"midlands":   {"midlands", "birmingham", "nec", "coventry", "leicester", "nottingham", "derby"},
				"manchester": {"manchester", "salford", "trafford", "manchester central"},
			},
		},
		Trust: TrustRules{
			DeniedTitles: []string{
				"tech expo", "gaming expo", "innovation summit", "future of retail",
				"ai expo", "startup showcase", "digital transformation expo",
			},
			TrustedDomains: []string{
				"excel.london", "olympia.london", "alexandrapalace.com", "southbankcentre.co.uk",
				"thenec.co.uk", "bluewater.co.uk", "westfield.com", "lakeside-shopping.com",
				"kenteventcentre.co.uk", "kentshowground.co.uk", "visitkent.co.uk",
				"visitlondon.com", "visitbritain.com", "eventbrite.co.uk", "eventbrite.com",
				"ticketmaster.co.uk", "seetickets.com", "skiddle.com", "gov.uk",
			},
			RecurringTitles: []string{
				"festival", "market", "fair", "christmas", "county show", "craft show",
				"food show", "car boot", "makers", "artisan", "farmers", "flea",
			},
		},
		Scoring: ScoringRules{
			MajorVenues: []string{
				"excel", "olympia", "nec", "alexandra palace", "bluewater", "westfield",
				"lakeside", "southbank", "wembley", "detling", "kent showground", "manchester central",
			},
			LargeGathering: []string{
				"festival", "comic con", "fair", "expo", "show", "carnival", "convention",
				"exhibition",
			},
			VendorKeywords: []string{
				"market", "craft", "food", "trade", "stall", "vendor", "exhibitor", "pop up",
				"popup", "makers", "artisan", "stand", "pitch",
			},
			StopWords: []string{
				"the", "and", "for", "with", "from", "this", "that", "into", "your", "our",
				"are", "was", "will", "all", "its", "out", "per", "via", "at", "in", "on", "of",
				"to", "a", "an", "by",
			},
			Weights: DefaultWeights(),
		},
	}
}
