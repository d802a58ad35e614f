// Package tiers holds the subscription tier catalog and the access rules
// evaluated against it.
package tiers

import (
	"fmt"
	"strings"
)

// Tier is a subscription level. Tiers are totally ordered by entitlement,
// so comparisons use the ordinal and never the identifier.
type Tier int

const (
	Basic Tier = iota
	Starter
	Growth
	Unlimited

	tierCount
)

var tierIDs = [tierCount]string{
	Basic:     "basic",
	Starter:   "starter",
	Growth:    "growth",
	Unlimited: "unlimited",
}

// Valid reports whether t is one of the four known tiers.
func (t Tier) Valid() bool {
	return t >= Basic && t < tierCount
}

// String returns the lowercase identifier, e.g. "growth".
func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierIDs[t]
}

// DisplayName returns the capitalised identifier, e.g. "Growth".
func (t Tier) DisplayName() string {
	if !t.Valid() {
		return ""
	}
	id := tierIDs[t]
	return strings.ToUpper(id[:1]) + id[1:]
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(tierIDs[t]), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, ok := ParseTier(string(b))
	if !ok {
		return fmt.Errorf("unknown tier %q", string(b))
	}
	*t = parsed
	return nil
}

// ParseTier maps an identifier to its Tier. Matching ignores case and
// surrounding whitespace.
func ParseTier(s string) (Tier, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, id := range tierIDs {
		if id == s {
			return Tier(i), true
		}
	}
	return Basic, false
}

// All returns every tier in ascending order.
func All() []Tier {
	out := make([]Tier, 0, tierCount)
	for t := Basic; t < tierCount; t++ {
		out = append(out, t)
	}
	return out
}

// FeatureKey names a gateable capability.
type FeatureKey string

const (
	FeatureClassScheduling     FeatureKey = "class_scheduling"
	FeatureClientManagement    FeatureKey = "client_management"
	FeatureAttendanceTracking  FeatureKey = "attendance_tracking"
	FeatureEmailNotifications  FeatureKey = "email_notifications"
	FeatureOnlineBooking       FeatureKey = "online_booking"
	FeatureOnlinePayments      FeatureKey = "online_payments"
	FeatureWaitlists           FeatureKey = "waitlists"
	FeatureAutomatedReminders  FeatureKey = "automated_reminders"
	FeatureSMSNotifications    FeatureKey = "sms_notifications"
	FeatureAdvancedReporting   FeatureKey = "advanced_reporting"
	FeatureMultiLocation       FeatureKey = "multi_location"
	FeatureStaffManagement     FeatureKey = "staff_management"
	FeatureAPIAccess           FeatureKey = "api_access"
	FeatureCustomBranding      FeatureKey = "custom_branding"
	FeaturePrioritySupport     FeatureKey = "priority_support"
	FeatureDedicatedAccountMgr FeatureKey = "dedicated_account_manager"
)

// Pricing is the price sheet of a single tier. A ClientLimit of zero means
// the tier has no client cap.
type Pricing struct {
	Price                 float64 `json:"price"`
	Currency              string  `json:"currency"`
	Period                string  `json:"period"`
	ClientLimit           int     `json:"client_limit"`
	AdditionalClientPrice float64 `json:"additional_client_price"`
}

type tierEntry struct {
	additions []FeatureKey
	features  []FeatureKey
	pricing   Pricing
}

// Each tier lists only what it adds; build() folds in everything below it.
var catalog = [tierCount]tierEntry{
	Basic: {
		additions: []FeatureKey{
			FeatureClassScheduling,
			FeatureClientManagement,
			FeatureAttendanceTracking,
			FeatureEmailNotifications,
		},
		pricing: Pricing{Price: 29, Currency: "$", Period: "month", ClientLimit: 50, AdditionalClientPrice: 1.00},
	},
	Starter: {
		additions: []FeatureKey{
			FeatureOnlineBooking,
			FeatureOnlinePayments,
			FeatureWaitlists,
			FeatureAutomatedReminders,
		},
		pricing: Pricing{Price: 59, Currency: "$", Period: "month", ClientLimit: 150, AdditionalClientPrice: 0.75},
	},
	Growth: {
		additions: []FeatureKey{
			FeatureSMSNotifications,
			FeatureAdvancedReporting,
			FeatureMultiLocation,
			FeatureStaffManagement,
		},
		pricing: Pricing{Price: 99, Currency: "$", Period: "month", ClientLimit: 500, AdditionalClientPrice: 0.50},
	},
	Unlimited: {
		additions: []FeatureKey{
			FeatureAPIAccess,
			FeatureCustomBranding,
			FeaturePrioritySupport,
			FeatureDedicatedAccountMgr,
		},
		pricing: Pricing{Price: 199, Currency: "$", Period: "month", ClientLimit: 0, AdditionalClientPrice: 0},
	},
}

var descriptions = map[FeatureKey]string{
	FeatureClassScheduling:     "Create and manage class timetables",
	FeatureClientManagement:    "Keep client and family records in one place",
	FeatureAttendanceTracking:  "Mark attendance for every lesson",
	FeatureEmailNotifications:  "Send class updates by email",
	FeatureOnlineBooking:       "Let clients book classes online",
	FeatureOnlinePayments:      "Accept card payments for bookings",
	FeatureWaitlists:           "Fill cancelled spots from a waitlist",
	FeatureAutomatedReminders:  "Automatic lesson reminders",
	FeatureSMSNotifications:    "Send class updates by SMS",
	FeatureAdvancedReporting:   "Revenue, retention and attendance reports",
	FeatureMultiLocation:       "Run several pools or studios from one account",
	FeatureStaffManagement:     "Instructor rosters and permissions",
	FeatureAPIAccess:           "Integrate with your own systems via the API",
	FeatureCustomBranding:      "Your logo and colours on every client page",
	FeaturePrioritySupport:     "Priority support with faster response times",
	FeatureDedicatedAccountMgr: "A named account manager for your business",
}

// lowestTier maps each feature to the first tier that includes it.
var lowestTier = map[FeatureKey]Tier{}

func init() {
	build()
}

func build() {
	var acc []FeatureKey
	for t := Basic; t < tierCount; t++ {
		for _, f := range catalog[t].additions {
			if _, seen := lowestTier[f]; !seen {
				lowestTier[f] = t
				acc = append(acc, f)
			}
		}
		catalog[t].features = append([]FeatureKey(nil), acc...)
	}
}

// FeaturesOf returns the ordered feature list of t. Unknown tiers yield nil.
// The returned slice is a copy.
func FeaturesOf(t Tier) []FeatureKey {
	if !t.Valid() {
		return nil
	}
	return append([]FeatureKey(nil), catalog[t].features...)
}

// DescriptionOf returns the human description of key, or "" if the key is
// not in the catalog.
func DescriptionOf(key FeatureKey) string {
	return descriptions[key]
}

// PricingOf returns the price sheet of t. Unknown tiers yield the zero value.
func PricingOf(t Tier) Pricing {
	if !t.Valid() {
		return Pricing{}
	}
	return catalog[t].pricing
}

// RequiredTierFor returns the lowest tier that includes key.
func RequiredTierFor(key FeatureKey) (Tier, bool) {
	t, ok := lowestTier[key]
	return t, ok
}

// KnownFeature reports whether key appears in the catalog.
func KnownFeature(key FeatureKey) bool {
	_, ok := lowestTier[key]
	return ok
}
