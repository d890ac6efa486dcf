package reporting

import (
	"errors"
	"strings"

	"github.com/radiusdt/adinsights/internal/graphapi"
)

var (
	ErrMissingAccountID = errors.New("no account id given and no default account configured")
	ErrInvalidBreakdown = errors.New("unsupported breakdown")
	ErrInvalidLevel     = errors.New("unsupported level")
	ErrNoThresholds     = errors.New("at least one of roas_min or cpa_max is required")
	ErrExportDisabled   = errors.New("row export is not configured")
	ErrAsyncDisabled    = errors.New("async reports are not configured")
)

// ResolveAccountID picks the explicit id, falling back to def, and normalizes
// it to the act_ form.
func ResolveAccountID(explicit, def string) (string, error) {
	id := strings.TrimSpace(explicit)
	if id == "" {
		id = strings.TrimSpace(def)
	}
	if id == "" {
		return "", ErrMissingAccountID
	}
	return graphapi.NormalizeAccountID(id), nil
}
