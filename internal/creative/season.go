package creative

import "time"

// Season is derived deterministically from the target country and the
// current month, never from a model.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
	SeasonWinter Season = "winter"
)

// southernHemisphere lists countries whose meteorological seasons are
// inverted relative to the northern calendar. Equatorial countries are left
// on the northern table; the distinction has no creative impact there.
var southernHemisphere = map[string]bool{
	"AR": true, "AU": true, "BO": true, "BW": true, "CL": true,
	"FJ": true, "MG": true, "MZ": true, "NA": true, "NZ": true,
	"PE": true, "PG": true, "PY": true, "UY": true, "ZA": true,
	"ZM": true, "ZW": true,
}

// SeasonFor returns the season for a country at a given time.
func SeasonFor(country string, at time.Time) Season {
	s := northernSeason(at.Month())
	if southernHemisphere[country] {
		return invert(s)
	}
	return s
}

func northernSeason(m time.Month) Season {
	switch {
	case m >= time.March && m <= time.May:
		return SeasonSpring
	case m >= time.June && m <= time.August:
		return SeasonSummer
	case m >= time.September && m <= time.November:
		return SeasonAutumn
	default:
		return SeasonWinter
	}
}

func invert(s Season) Season {
	switch s {
	case SeasonSpring:
		return SeasonAutumn
	case SeasonSummer:
		return SeasonWinter
	case SeasonAutumn:
		return SeasonSpring
	default:
		return SeasonSummer
	}
}
