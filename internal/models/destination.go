package models

import (
	"fmt"
	"strings"
)

// Destination identifies one of the supported sync targets.
type Destination string

const (
	DestinationGoogle  Destination = "GOOGLE"  // direct API with prefill fallback
	DestinationApple   Destination = "APPLE"   // .ics download
	DestinationOutlook Destination = "OUTLOOK" // .ics download
	DestinationYahoo   Destination = "YAHOO"   // prefill URL
)

// Destinations lists every supported destination, in display order.
var Destinations = []Destination{
	DestinationGoogle,
	DestinationApple,
	DestinationOutlook,
	DestinationYahoo,
}

// ParseDestination maps a user-supplied name to a Destination.
func ParseDestination(s string) (Destination, error) {
	d := Destination(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Destinations {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown calendar destination %q (expected one of GOOGLE, APPLE, OUTLOOK, YAHOO)", s)
}
