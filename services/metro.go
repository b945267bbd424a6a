package services

import "strings"

// cityMetros maps "city|state" to the metro area used for territory filtering.
// Fixed table, not a geocoder: unknown cities simply get no metro.
var cityMetros = map[string]string{
	"phoenix|az":        "Phoenix-Mesa-Chandler, AZ",
	"mesa|az":           "Phoenix-Mesa-Chandler, AZ",
	"chandler|az":       "Phoenix-Mesa-Chandler, AZ",
	"scottsdale|az":     "Phoenix-Mesa-Chandler, AZ",
	"tempe|az":          "Phoenix-Mesa-Chandler, AZ",
	"gilbert|az":        "Phoenix-Mesa-Chandler, AZ",
	"glendale|az":       "Phoenix-Mesa-Chandler, AZ",
	"peoria|az":         "Phoenix-Mesa-Chandler, AZ",
	"tucson|az":         "Tucson, AZ",
	"las vegas|nv":      "Las Vegas-Henderson-Paradise, NV",
	"henderson|nv":      "Las Vegas-Henderson-Paradise, NV",
	"reno|nv":           "Reno, NV",
	"dallas|tx":         "Dallas-Fort Worth-Arlington, TX",
	"fort worth|tx":     "Dallas-Fort Worth-Arlington, TX",
	"arlington|tx":      "Dallas-Fort Worth-Arlington, TX",
	"plano|tx":          "Dallas-Fort Worth-Arlington, TX",
	"houston|tx":        "Houston-The Woodlands-Sugar Land, TX",
	"sugar land|tx":     "Houston-The Woodlands-Sugar Land, TX",
	"austin|tx":         "Austin-Round Rock-Georgetown, TX",
	"round rock|tx":     "Austin-Round Rock-Georgetown, TX",
	"san antonio|tx":    "San Antonio-New Braunfels, TX",
	"denver|co":         "Denver-Aurora-Lakewood, CO",
	"aurora|co":         "Denver-Aurora-Lakewood, CO",
	"lakewood|co":       "Denver-Aurora-Lakewood, CO",
	"colorado springs|co": "Colorado Springs, CO",
	"atlanta|ga":        "Atlanta-Sandy Springs-Alpharetta, GA",
	"marietta|ga":       "Atlanta-Sandy Springs-Alpharetta, GA",
	"tampa|fl":          "Tampa-St. Petersburg-Clearwater, FL",
	"st. petersburg|fl": "Tampa-St. Petersburg-Clearwater, FL",
	"clearwater|fl":     "Tampa-St. Petersburg-Clearwater, FL",
	"orlando|fl":        "Orlando-Kissimmee-Sanford, FL",
	"miami|fl":          "Miami-Fort Lauderdale-Pompano Beach, FL",
	"fort lauderdale|fl": "Miami-Fort Lauderdale-Pompano Beach, FL",
	"jacksonville|fl":   "Jacksonville, FL",
	"charlotte|nc":      "Charlotte-Concord-Gastonia, NC-SC",
	"raleigh|nc":        "Raleigh-Cary, NC",
	"nashville|tn":      "Nashville-Davidson-Murfreesboro, TN",
	"salt lake city|ut": "Salt Lake City, UT",
	"boise|id":          "Boise City, ID",
	"san diego|ca":      "San Diego-Chula Vista-Carlsbad, CA",
	"sacramento|ca":     "Sacramento-Roseville-Folsom, CA",
	"riverside|ca":      "Riverside-San Bernardino-Ontario, CA",
	"seattle|wa":        "Seattle-Tacoma-Bellevue, WA",
	"tacoma|wa":         "Seattle-Tacoma-Bellevue, WA",
	"portland|or":       "Portland-Vancouver-Hillsboro, OR-WA",
	"oklahoma city|ok":  "Oklahoma City, OK",
	"kansas city|mo":    "Kansas City, MO-KS",
	"indianapolis|in":   "Indianapolis-Carmel-Anderson, IN",
	"columbus|oh":       "Columbus, OH",
}

// MetroFor resolves a city/state pair to its metro area, or "" when the city
// is not in the table.
func MetroFor(city, state string) string {
	if city == "" || state == "" {
		return ""
	}
	key := strings.ToLower(strings.TrimSpace(city)) + "|" + strings.ToLower(strings.TrimSpace(state))
	return cityMetros[key]
}
