package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// writeJSON emits indented JSON for --json output.
func writeJSON(out io.Writer, payload any) error {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(encoded))
	return err
}
