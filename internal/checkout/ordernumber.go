package checkout

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newOrderNumber builds a human-friendly order identifier: the checkout date
// plus 8 random hex characters, e.g. ORD-20260830-9F3A01BC. Collisions are
// possible and handled by the insert retry, never by a pre-check.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
