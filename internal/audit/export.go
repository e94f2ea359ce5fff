package audit

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"time"
)

var csvHeader = []string{"id", "created_at", "actor_id", "actor_name", "action", "entity_type", "entity_id", "details"}

// WriteCSV renders entries as CSV with a header row. Details are written as
// a JSON object.
func WriteCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		details, err := json.Marshal(e.Details.Clone())
		if err != nil {
			return err
		}
		record := []string{
			e.ID.String(),
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.ActorID,
			e.ActorName,
			string(e.Action),
			string(e.EntityType),
			e.EntityID,
			string(details),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
