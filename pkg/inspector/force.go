package inspector

import (
	"errors"
	"strings"

	"github.com/jmylchreest/optiscope/pkg/schema"
)

// ErrMissingIDs is returned when an experiment or variation id is empty.
var ErrMissingIDs = errors.New("experiment and variation ids are required")

// ForceVariationParam is the query parameter prefix that forces a variation.
const ForceVariationParam = "optimizely_x"

// ForceVariationURL returns pageURL with the query parameter that forces the
// given experiment into the given variation.
func ForceVariationURL(pageURL, experimentID, variationID string) (string, error) {
	u, err := ValidateURL(pageURL)
	if err != nil {
		return "", err
	}
	experimentID = strings.TrimSpace(experimentID)
	variationID = strings.TrimSpace(variationID)
	if experimentID == "" || variationID == "" {
		return "", ErrMissingIDs
	}

	q := u.Query()
	q.Set(ForceVariationParam+experimentID, variationID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RunningOnly returns a copy of cfg keeping only running or active experiments.
func RunningOnly(cfg *schema.Configuration) *schema.Configuration {
	if cfg == nil {
		return nil
	}
	out := *cfg
	out.Experiments = make([]schema.Experiment, 0, len(cfg.Experiments))
	for _, e := range cfg.Experiments {
		if e.Status.Live() {
			out.Experiments = append(out.Experiments, e)
		}
	}
	return &out
}
