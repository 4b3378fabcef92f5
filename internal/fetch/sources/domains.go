package sources

// Payload domains distinguish what a site contributes. Part of the
// collected-blob natural key alongside site and data type.
const (
	domainPrice      = 1
	domainDisclosure = 2
	domainQuote      = 3
	domainFlow       = 4
	domainNews       = 5
	domainConsensus  = 6
	domainResearch   = 7
)
