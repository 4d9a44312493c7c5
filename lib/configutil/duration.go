package configutil

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/titanous/json5"
)

// Duration accepts either a Go duration string ("90s", "1h30m") or a
// number of seconds in config files.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	err := json5.Unmarshal(data, &raw)
	if err != nil {
		return err
	}
	switch value := raw.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	}
	return fmt.Errorf("invalid duration %s", string(data))
}

// Or returns fallback when the duration is unset.
func (d Duration) Or(fallback time.Duration) time.Duration {
	if d.Duration <= 0 {
		return fallback
	}
	return d.Duration
}
