package pubmed

import (
	"fmt"
	"time"
)

// PublicationDateLayout is the date format of the [Date - Publication] field.
const PublicationDateLayout = "2006/01/02"

// DateQuery returns the publication date clause for the UTC calendar day
// windowDays before now, e.g. ("2026/03/01"[Date - Publication]).
func DateQuery(now time.Time, windowDays int) string {
	target := now.UTC().AddDate(0, 0, -windowDays)
	return fmt.Sprintf(`("%s"[Date - Publication])`, target.Format(PublicationDateLayout))
}
