package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// Control identifiers like AC-2, IA-5(1). The enhancement suffix is optional.
var controlPattern = regexp.MustCompile(`\b([A-Z]{2})-(\d+)(?:\((\d+)\))?\b`)

// Publication references like "NIST SP 800-53" or "NIST SP 800-63A r3".
var publicationPattern = regexp.MustCompile(`(?i)\bNIST\s+SP\s+(\d+-\d+(?:[A-Z])?(?:r\d+)?)\b`)

// conceptTerms is the built-in security concept dictionary. Ids are canonical
// concept labels; values are the surface forms that count as a mention.
var conceptTerms = map[string][]string{
	"mfa":               {"multi-factor authentication", "2fa", "two-factor"},
	"encryption":        {"encrypt", "cipher", "aes", "rsa"},
	"zero-trust":        {"zero trust", "never trust always verify"},
	"identity":          {"digital identity", "identity verification"},
	"privacy":           {"data privacy", "pii", "personal information", "gdpr"},
	"access-control":    {"access control", "authorization", "rbac", "abac"},
	"audit":             {"audit log", "siem", "security monitoring"},
	"incident-response": {"incident response", "breach response"},
	"risk-management":   {"risk assessment", "risk analysis", "threat modeling"},
	"supply-chain":      {"supply chain security", "sbom", "vendor risk"},
}

// NewControlRecognizer recognizes security control identifiers.
func NewControlRecognizer() Recognizer {
	return &PatternRecognizer{
		RuleName: "control",
		Pattern:  controlPattern,
		Build: func(text string, m []int) (Candidate, bool) {
			family := text[m[2]:m[3]]
			number := text[m[4]:m[5]]
			id := family + "-" + number
			name := fmt.Sprintf("Control %s", id)
			attrs := map[string]string{"family": family, "number": number}
			if m[6] >= 0 {
				enh := text[m[6]:m[7]]
				id = fmt.Sprintf("%s-%s(%s)", family, number, enh)
				name = fmt.Sprintf("Control %s-%s Enhancement %s", family, number, enh)
				attrs["enhancement"] = enh
			}
			return Candidate{
				ID:         id,
				Type:       types.EntityControl,
				Name:       name,
				Attributes: attrs,
			}, true
		},
	}
}

// NewPublicationRecognizer recognizes standards publication references.
func NewPublicationRecognizer() Recognizer {
	return &PatternRecognizer{
		RuleName: "publication",
		Pattern:  publicationPattern,
		Build: func(text string, m []int) (Candidate, bool) {
			num := strings.ToUpper(text[m[2]:m[3]])
			return Candidate{
				ID:         "NIST-SP-" + num,
				Type:       types.EntityPublication,
				Name:       "NIST SP " + num,
				Attributes: map[string]string{"publication_number": num},
			}, true
		},
	}
}

// NewConceptRecognizer recognizes security concepts from the built-in
// dictionary. Pass extra terms to extend the dictionary; extras with an id
// already present replace the built-in keywords for that id.
func NewConceptRecognizer(extra map[string][]string) Recognizer {
	terms := make(map[string][]string, len(conceptTerms)+len(extra))
	for id, kws := range conceptTerms {
		terms[id] = kws
	}
	for id, kws := range extra {
		terms[id] = kws
	}
	return &DictionaryRecognizer{
		RuleName:   "concept",
		EntityType: types.EntityConcept,
		Terms:      terms,
	}
}

// DefaultRecognizers returns the built-in rule table in application order.
func DefaultRecognizers() []Recognizer {
	return []Recognizer{
		NewControlRecognizer(),
		NewPublicationRecognizer(),
		NewConceptRecognizer(nil),
	}
}
