// Package parser extracts structured travel-policy rules from plain-text
// policy documents. Extraction is regex-driven and deliberately lossy:
// lines that match no pattern are ignored, and downstream generation
// fills gaps with policy defaults.
package parser

import (
	"regexp"
	"strings"
)

// Rule categories produced by Parse.
const (
	CategoryCabinClass     = "cabin_class"
	CategoryCostApproval   = "cost_approval"
	CategoryAdvanceBooking = "advance_booking"
	CategoryAirlines       = "airline_preference"
	CategoryBaggage        = "baggage"
)

// Attribute keys used in Rule.Attrs. Values are strings as captured;
// the generator parses numbers where it needs them.
const (
	AttrEmployeeLevel = "employee_level"
	AttrCabinClass    = "cabin_class"
	AttrFlightHours   = "flight_hours"
	AttrFlightType    = "flight_type"
	AttrThreshold     = "threshold"
	AttrApprover      = "approver"
	AttrMinDays       = "min_days"
	AttrException     = "exception"
	AttrAirlines      = "airlines"
	AttrMaxBags       = "max_bags"
	AttrOverageFee    = "overage_fee"
)

// Exception values for advance-booking rules.
const (
	ExceptionEmergency  = "emergency"
	ExceptionConference = "conference"
)

// Rule is one extracted policy statement. Source preserves the matched
// text for traceability.
type Rule struct {
	Category string            `json:"category"`
	Attrs    map[string]string `json:"attrs"`
	Source   string            `json:"source"`
}

// PolicyDoc is the parsed form of a policy document.
type PolicyDoc struct {
	Company   string `json:"company"`
	Version   string `json:"version"`
	Effective string `json:"effective,omitempty"`
	Rules     []Rule `json:"rules"`
}

// cabinPattern pairs a regex with the capture-group positions of the
// fields it extracts; 0 means the pattern does not capture that field.
type cabinPattern struct {
	re       *regexp.Regexp
	level    int
	cabin    int
	hours    int
	flightTy int
}

// Parser holds the compiled extraction patterns. A single Parser is safe
// for concurrent use.
type Parser struct {
	cabinPatterns []cabinPattern
	costPattern   *regexp.Regexp
	daysPattern   *regexp.Regexp
	airlineBlock  *regexp.Regexp
	airlineName   *regexp.Regexp
	bagsPattern   *regexp.Regexp
	bagFeePattern *regexp.Regexp
	levelPattern  *regexp.Regexp
}

func NewParser() *Parser {
	return &Parser{
		cabinPatterns: []cabinPattern{
			// "Executives can book business class for flights over 6 hours"
			{
				re:    regexp.MustCompile(`(?i)(\w+(?:\s+\w+)*?)\s+(?:can|may)\s+book\s+(\w+)\s+class\s+for\s+(?:flights?\s+(?:over|of)\s+)?(\d+)\+?\s*hours?`),
				level: 1, cabin: 2, hours: 3,
			},
			// "Business class is allowed for directors on international flights"
			{
				re:    regexp.MustCompile(`(?i)(\w+)\s+class\s+(?:is\s+)?allowed\s+for\s+(\w+(?:\s+\w+)*?)\s+on\s+(\w+)\s+flights`),
				cabin: 1, level: 2, flightTy: 3,
			},
			// "Managers: premium economy class for international flights over 10 hours"
			{
				re:    regexp.MustCompile(`(?i)(\w+(?:\s+\w+)*?):?\s+(\w+)\s+class\s+for\s+(\w+)\s+flights\s+over\s+(\d+)\s+hours`),
				level: 1, cabin: 2, flightTy: 3, hours: 4,
			},
		},
		// "$2,000 requires manager approval"
		costPattern: regexp.MustCompile(`(?i)\$?\s*([\d,]+)\s+(?:requires?|needs?)\s+(?:(manager|director|executive|vp|finance|supervisor)\s+)?approval`),
		// "14 days in advance", "7 days before"
		daysPattern: regexp.MustCompile(`(?i)(\d+)\s+days?\s+(?:in\s+advance|advance|before|prior)`),
		// "Preferred airlines: Delta, United" up to a blank line
		airlineBlock: regexp.MustCompile(`(?is)(?:preferred|approved)\s+airlines?:?(.*?)(?:\n\n|\z)`),
		airlineName:  regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\b`),
		// "2 checked bags", "3 pieces of luggage"
		bagsPattern: regexp.MustCompile(`(?i)(\d+)\s+(?:checked\s+)?(?:bags?|pieces?)(?:\s+of\s+luggage)?\b`),
		// "$35 per extra bag"
		bagFeePattern: regexp.MustCompile(`(?i)\$\s*(\d+(?:\.\d+)?)\s+(?:per|for\s+each)\s+(?:extra|additional|excess)\s+bag`),
		levelPattern:  regexp.MustCompile(`(?i)\b(executives?|directors?|senior\s+managers?|managers?|staff|interns?|contractors?|employees?)\b`),
	}
}

// Parse extracts metadata and rules from a policy document. It never
// fails: an unparseable document yields a PolicyDoc with defaults and no
// rules.
func (p *Parser) Parse(text string) *PolicyDoc {
	lines := strings.Split(strings.TrimSpace(text), "\n")

	doc := &PolicyDoc{
		Company: "Unknown Company",
		Version: "1.0",
	}
	p.extractMetadata(lines, doc)

	doc.Rules = append(doc.Rules, p.parseCabinRules(lines)...)
	doc.Rules = append(doc.Rules, p.parseCostRules(text)...)
	doc.Rules = append(doc.Rules, p.parseBookingRules(lines)...)
	doc.Rules = append(doc.Rules, p.parseAirlineRules(text)...)
	doc.Rules = append(doc.Rules, p.parseBaggageRules(lines)...)
	return doc
}

// extractMetadata reads company/version/effective headers from the first
// ten lines, colon-separated and case-insensitive.
func (p *Parser) extractMetadata(lines []string, doc *PolicyDoc) {
	head := lines
	if len(head) > 10 {
		head = head[:10]
	}
	for _, line := range head {
		lower := strings.ToLower(line)
		if !strings.Contains(line, ":") {
			continue
		}
		value := strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
		switch {
		case strings.Contains(lower, "company"):
			if value != "" {
				doc.Company = value
			}
		case strings.Contains(lower, "version"):
			if value != "" {
				doc.Version = value
			}
		case strings.Contains(lower, "effective"):
			doc.Effective = value
		}
	}
}

// parseCabinRules is line-oriented so level captures cannot bleed across
// statements.
func (p *Parser) parseCabinRules(lines []string) []Rule {
	var rules []Rule
	for _, line := range lines {
		for _, cp := range p.cabinPatterns {
			for _, m := range cp.re.FindAllStringSubmatch(line, -1) {
				attrs := map[string]string{}
				if cp.level > 0 {
					attrs[AttrEmployeeLevel] = normalizeLevel(m[cp.level])
				}
				if cp.cabin > 0 {
					attrs[AttrCabinClass] = strings.ToLower(m[cp.cabin])
				}
				if cp.hours > 0 {
					attrs[AttrFlightHours] = m[cp.hours]
				}
				if cp.flightTy > 0 {
					attrs[AttrFlightType] = strings.ToLower(m[cp.flightTy])
				}
				rules = append(rules, Rule{Category: CategoryCabinClass, Attrs: attrs, Source: m[0]})
			}
		}
	}
	return rules
}

func (p *Parser) parseCostRules(text string) []Rule {
	var rules []Rule
	for _, m := range p.costPattern.FindAllStringSubmatch(text, -1) {
		attrs := map[string]string{
			AttrThreshold: strings.ReplaceAll(m[1], ",", ""),
			AttrApprover:  "manager",
		}
		if m[2] != "" {
			attrs[AttrApprover] = strings.ToLower(m[2])
		}
		rules = append(rules, Rule{Category: CategoryCostApproval, Attrs: attrs, Source: m[0]})
	}
	return rules
}

// parseBookingRules is line-oriented so exception context (emergency,
// conference) stays attached to the day count it qualifies.
func (p *Parser) parseBookingRules(lines []string) []Rule {
	var rules []Rule
	for _, line := range lines {
		lower := strings.ToLower(line)
		exception := ""
		switch {
		case strings.Contains(lower, "emergenc"):
			exception = ExceptionEmergency
		case strings.Contains(lower, "conference"):
			exception = ExceptionConference
		}

		matches := p.daysPattern.FindAllStringSubmatch(line, -1)
		for _, m := range matches {
			attrs := map[string]string{AttrMinDays: m[1]}
			if exception != "" {
				attrs[AttrException] = exception
			}
			rules = append(rules, Rule{Category: CategoryAdvanceBooking, Attrs: attrs, Source: m[0]})
		}

		// Waiver lines carry no day count but still matter.
		if len(matches) == 0 && exception == ExceptionEmergency &&
			(strings.Contains(lower, "waiv") || strings.Contains(lower, "exempt") || strings.Contains(lower, "except")) {
			rules = append(rules, Rule{
				Category: CategoryAdvanceBooking,
				Attrs:    map[string]string{AttrException: ExceptionEmergency},
				Source:   strings.TrimSpace(line),
			})
		}
	}
	return rules
}

func (p *Parser) parseAirlineRules(text string) []Rule {
	m := p.airlineBlock.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	names := p.airlineName.FindAllString(m[1], -1)
	if len(names) == 0 {
		return nil
	}
	return []Rule{{
		Category: CategoryAirlines,
		Attrs:    map[string]string{AttrAirlines: strings.Join(names, ", ")},
		Source:   strings.TrimSpace(m[0]),
	}}
}

func (p *Parser) parseBaggageRules(lines []string) []Rule {
	var rules []Rule
	for _, line := range lines {
		if m := p.bagFeePattern.FindStringSubmatch(line); m != nil {
			rules = append(rules, Rule{
				Category: CategoryBaggage,
				Attrs:    map[string]string{AttrOverageFee: m[1]},
				Source:   m[0],
			})
		}
		for _, idx := range p.bagsPattern.FindAllStringSubmatchIndex(line, -1) {
			attrs := map[string]string{AttrMaxBags: line[idx[2]:idx[3]]}
			if level := p.levelBefore(line, idx[0]); level != "" {
				attrs[AttrEmployeeLevel] = level
			}
			rules = append(rules, Rule{Category: CategoryBaggage, Attrs: attrs, Source: line[idx[0]:idx[1]]})
		}
	}
	return rules
}

// levelBefore returns the level word nearest before pos on the line, or
// the first one anywhere on the line as a fallback. "Staff may check 1
// bag. Executives get 3 bags." attributes each count to its own level.
func (p *Parser) levelBefore(line string, pos int) string {
	if found := p.levelPattern.FindAllString(line[:pos], -1); len(found) > 0 {
		return normalizeLevel(found[len(found)-1])
	}
	if found := p.levelPattern.FindString(line); found != "" {
		return normalizeLevel(found)
	}
	return ""
}

// normalizeToken lower-cases and underscores a captured phrase.
func normalizeToken(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// normalizeLevel reduces a captured level word to its singular canonical
// form ("Executives" -> "executive").
func normalizeLevel(s string) string {
	level := normalizeToken(s)
	if level != "staff" && strings.HasSuffix(level, "s") {
		level = strings.TrimSuffix(level, "s")
	}
	return level
}
