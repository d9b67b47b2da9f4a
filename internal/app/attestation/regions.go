package attestation

import (
	"sort"
	"strings"
)

// Indian state and union territory codes accepted in region attestations.
var supportedRegions = map[string]string{
	"AN": "Andaman and Nicobar Islands",
	"AP": "Andhra Pradesh",
	"AR": "Arunachal Pradesh",
	"AS": "Assam",
	"BR": "Bihar",
	"CH": "Chandigarh",
	"CG": "Chhattisgarh",
	"DD": "Daman and Diu",
	"DL": "Delhi",
	"DN": "Dadra and Nagar Haveli",
	"GA": "Goa",
	"GJ": "Gujarat",
	"HP": "Himachal Pradesh",
	"HR": "Haryana",
	"JH": "Jharkhand",
	"JK": "Jammu and Kashmir",
	"KA": "Karnataka",
	"KL": "Kerala",
	"LA": "Ladakh",
	"LD": "Lakshadweep",
	"MH": "Maharashtra",
	"ML": "Meghalaya",
	"MN": "Manipur",
	"MP": "Madhya Pradesh",
	"MZ": "Mizoram",
	"NL": "Nagaland",
	"OD": "Odisha",
	"PB": "Punjab",
	"PY": "Puducherry",
	"RJ": "Rajasthan",
	"SK": "Sikkim",
	"TN": "Tamil Nadu",
	"TR": "Tripura",
	"TS": "Telangana",
	"UK": "Uttarakhand",
	"UP": "Uttar Pradesh",
	"WB": "West Bengal",
}

var regionAliases = map[string]string{
	"orissa":       "OD",
	"pondicherry":  "PY",
	"uttaranchal":  "UK",
	"new delhi":    "DL",
	"nct of delhi": "DL",
}

var regionsByName = func() map[string]string {
	m := make(map[string]string, len(supportedRegions)+len(regionAliases))
	for code, name := range supportedRegions {
		m[normalizeName(name)] = code
	}
	for alias, code := range regionAliases {
		m[alias] = code
	}
	return m
}()

func normalizeName(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "&", " and "))
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeRegion maps a region code or a state name to its supported code.
func NormalizeRegion(descriptor string) (string, bool) {
	trimmed := strings.TrimSpace(descriptor)
	if trimmed == "" {
		return "", false
	}

	code := strings.ToUpper(trimmed)
	if _, ok := supportedRegions[code]; ok {
		return code, true
	}

	code, ok := regionsByName[normalizeName(trimmed)]
	return code, ok
}

func IsSupportedRegion(code string) bool {
	_, ok := supportedRegions[code]
	return ok
}

func SupportedRegions() []string {
	codes := make([]string, 0, len(supportedRegions))
	for code := range supportedRegions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
