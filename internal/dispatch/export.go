package dispatch

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// exportHeader is the fixed column order for history exports.
var exportHeader = []string{"ID", "To", "Subject", "Status", "SentAt"}

// WriteCSV serializes dispatch records as a delimited table, one record
// per line, fields containing delimiters quoted per CSV rules.
func WriteCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, record := range records {
		row := []string{
			record.ID,
			record.To,
			record.Subject,
			record.Status,
			record.SentAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write record %s: %w", record.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
