package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const acmePolicy = `Company: Acme Corp
Version: 2.1
Effective: 2026-01-15

TRAVEL POLICY

Executives can book business class for flights over 6 hours.
Economy class is allowed for staff on domestic flights.

Any trip over $2,000 requires manager approval.
International trips over $5,000 need director approval.

All travel must be booked 14 days in advance.
Conference travel should be booked 30 days in advance.
Advance booking requirements are waived for emergency travel.

Preferred airlines: Delta, United, Alaska

Staff may check 1 bag. Executives are allowed 3 checked bags.
A fee of $35 per extra bag applies.
`

func rulesOf(doc *PolicyDoc, category string) []Rule {
	var out []Rule
	for _, r := range doc.Rules {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}

func TestParseMetadata(t *testing.T) {
	doc := NewParser().Parse(acmePolicy)

	require.Equal(t, "Acme Corp", doc.Company)
	require.Equal(t, "2.1", doc.Version)
	require.Equal(t, "2026-01-15", doc.Effective)
}

func TestParseMetadataDefaults(t *testing.T) {
	doc := NewParser().Parse("Just some text with no headers.\nNothing else.")

	require.Equal(t, "Unknown Company", doc.Company)
	require.Equal(t, "1.0", doc.Version)
	require.Empty(t, doc.Effective)
	require.Empty(t, doc.Rules)
}

func TestParseMetadataOnlyReadsDocumentHead(t *testing.T) {
	text := "line\nline\nline\nline\nline\nline\nline\nline\nline\nline\nCompany: Late Corp\n"
	doc := NewParser().Parse(text)

	require.Equal(t, "Unknown Company", doc.Company)
}

func TestParseCabinRules(t *testing.T) {
	doc := NewParser().Parse(acmePolicy)
	cabin := rulesOf(doc, CategoryCabinClass)
	require.Len(t, cabin, 2)

	require.Equal(t, "executive", cabin[0].Attrs[AttrEmployeeLevel])
	require.Equal(t, "business", cabin[0].Attrs[AttrCabinClass])
	require.Equal(t, "6", cabin[0].Attrs[AttrFlightHours])

	require.Equal(t, "staff", cabin[1].Attrs[AttrEmployeeLevel])
	require.Equal(t, "economy", cabin[1].Attrs[AttrCabinClass])
	require.Equal(t, "domestic", cabin[1].Attrs[AttrFlightType])
}

func TestParseCabinRuleColonForm(t *testing.T) {
	doc := NewParser().Parse("Managers: premium class for international flights over 10 hours.")
	cabin := rulesOf(doc, CategoryCabinClass)
	require.Len(t, cabin, 1)
	require.Equal(t, "manager", cabin[0].Attrs[AttrEmployeeLevel])
	require.Equal(t, "premium", cabin[0].Attrs[AttrCabinClass])
	require.Equal(t, "international", cabin[0].Attrs[AttrFlightType])
	require.Equal(t, "10", cabin[0].Attrs[AttrFlightHours])
}

func TestParseCostRules(t *testing.T) {
	doc := NewParser().Parse(acmePolicy)
	cost := rulesOf(doc, CategoryCostApproval)
	require.Len(t, cost, 2)

	require.Equal(t, "2000", cost[0].Attrs[AttrThreshold])
	require.Equal(t, "manager", cost[0].Attrs[AttrApprover])

	require.Equal(t, "5000", cost[1].Attrs[AttrThreshold])
	require.Equal(t, "director", cost[1].Attrs[AttrApprover])
}

func TestParseCostRuleWithoutRoleDefaultsToManager(t *testing.T) {
	doc := NewParser().Parse("Anything over $800 needs approval.")
	cost := rulesOf(doc, CategoryCostApproval)
	require.Len(t, cost, 1)
	require.Equal(t, "800", cost[0].Attrs[AttrThreshold])
	require.Equal(t, "manager", cost[0].Attrs[AttrApprover])
}

func TestParseBookingRules(t *testing.T) {
	doc := NewParser().Parse(acmePolicy)
	booking := rulesOf(doc, CategoryAdvanceBooking)
	require.Len(t, booking, 3)

	require.Equal(t, "14", booking[0].Attrs[AttrMinDays])
	require.Empty(t, booking[0].Attrs[AttrException])

	require.Equal(t, "30", booking[1].Attrs[AttrMinDays])
	require.Equal(t, ExceptionConference, booking[1].Attrs[AttrException])

	require.Empty(t, booking[2].Attrs[AttrMinDays])
	require.Equal(t, ExceptionEmergency, booking[2].Attrs[AttrException])
}

func TestParseAirlinePreferences(t *testing.T) {
	doc := NewParser().Parse(acmePolicy)
	airlines := rulesOf(doc, CategoryAirlines)
	require.Len(t, airlines, 1)
	require.Equal(t, "Delta, United, Alaska", airlines[0].Attrs[AttrAirlines])
}

func TestParseNoAirlineSection(t *testing.T) {
	doc := NewParser().Parse("Company: X\nNo airline talk here.")
	require.Empty(t, rulesOf(doc, CategoryAirlines))
}

func TestParseBaggageRules(t *testing.T) {
	doc := NewParser().Parse(acmePolicy)
	baggage := rulesOf(doc, CategoryBaggage)
	require.Len(t, baggage, 3)

	require.Equal(t, "1", baggage[0].Attrs[AttrMaxBags])
	require.Equal(t, "staff", baggage[0].Attrs[AttrEmployeeLevel])

	require.Equal(t, "3", baggage[1].Attrs[AttrMaxBags])
	require.Equal(t, "executive", baggage[1].Attrs[AttrEmployeeLevel])

	require.Equal(t, "35", baggage[2].Attrs[AttrOverageFee])
}

func TestParseBaggageLevelScopedToSentence(t *testing.T) {
	doc := NewParser().Parse("Managers get 2 checked bags. Interns get 1 bag.")
	baggage := rulesOf(doc, CategoryBaggage)
	require.Len(t, baggage, 2)
	require.Equal(t, "manager", baggage[0].Attrs[AttrEmployeeLevel])
	require.Equal(t, "2", baggage[0].Attrs[AttrMaxBags])
	require.Equal(t, "intern", baggage[1].Attrs[AttrEmployeeLevel])
	require.Equal(t, "1", baggage[1].Attrs[AttrMaxBags])
}

func TestParseUnparsableLinesIgnored(t *testing.T) {
	doc := NewParser().Parse("Company: Terse Inc\n\nBe sensible about travel spend.\n")
	require.Equal(t, "Terse Inc", doc.Company)
	require.Empty(t, doc.Rules)
}
