package app

import "strings"

const OtherProgram = "Other"

// LoyaltyPrograms are the programs a brand can map to, in display order.
var LoyaltyPrograms = []string{
	"Accor Le Club",
	"Best Western Rewards",
	"Choice Privileges",
	"Hilton Honors",
	"IHG Rewards Club",
	"Marriott Bonvoy",
	"Radisson Rewards",
	"World of Hyatt",
	"Wyndham Rewards",
}

var brandPrograms = map[string][]string{
	"Accor Le Club":        {"Accor Live Limitless (ALL)"},
	"Best Western Rewards": {"Best Western", "Best Western Plus", "Best Western Rewards"},
	// "Priviliges" is how the upstream spells it for some hotels.
	"Choice Privileges": {"Cambria Hotels", "Choice Privileges", "Choice Priviliges"},
	"Hilton Honors": {
		"DoubleTree by Hilton", "Hampton by Hilton", "Hampton Inn & Suites", "Hilton",
		"Hilton Garden Inn", "Hilton Honors", "Hilton Tempo", "Home2 Suites",
		"Homewood Suites", "Tapestry Collection", "Tru by Hilton",
	},
	"IHG Rewards Club": {"Holiday Inn", "Kimpton", "IHG Rewards"},
	"Marriott Bonvoy": {
		"AC Hotel", "Courtyard Marriott", "Delta Hotel", "Le Meridien", "Marriott",
		"Marriott Bonvoy", "Renaissance", "Residence Inn", "Ritz-Carlton", "St. Regis",
		"Tribute Portfolio", "Westin",
	},
	"Radisson Rewards": {"Radisson Rewards"},
	"World of Hyatt":   {"Destination Hotels", "World of Hyatt"},
	"Wyndham Rewards":  {"La Quinta", "Wyndham Rewards"},
}

var loyaltyByBrand = func() map[string]string {
	m := make(map[string]string, 48)
	for program, brands := range brandPrograms {
		for _, b := range brands {
			m[normalizeBrand(b)] = program
		}
	}
	return m
}()

func normalizeBrand(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// LoyaltyProgram maps a brand name to its program, "Other" when unknown or nil.
func LoyaltyProgram(brand *string) string {
	if brand == nil {
		return OtherProgram
	}
	if p, ok := loyaltyByBrand[normalizeBrand(*brand)]; ok {
		return p
	}
	return OtherProgram
}
