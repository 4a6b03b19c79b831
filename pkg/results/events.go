package results

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// scalarEvent is one record in the streaming sink: a named scalar tagged
// with the round number as the step axis.
type scalarEvent struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
	Step  int    `json:"step"`
}

func (s *Sink) appendEvents(flat map[string]any, round int) error {
	f, err := os.OpenFile(s.eventsFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	defer f.Close()

	names := make([]string, 0, len(flat))
	for name := range flat {
		names = append(names, name)
	}
	sort.Strings(names)

	enc := json.NewEncoder(f)
	for _, name := range names {
		if err := enc.Encode(scalarEvent{Name: name, Value: flat[name], Step: round}); err != nil {
			return fmt.Errorf("failed to append scalar event: %w", err)
		}
	}

	return nil
}
