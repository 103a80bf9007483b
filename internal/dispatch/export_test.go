package dispatch

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	sentAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	records := []Record{
		{ID: "r2", To: "a@x.com (+2 more)", Subject: "bulk, with comma", Status: StatusSent, SentAt: sentAt},
		{ID: "r1", To: "b@x.com", Subject: "plain", Status: StatusFailed, SentAt: sentAt.Add(-time.Hour)},
	}

	var buf strings.Builder
	require.NoError(t, WriteCSV(&buf, records))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "ID,To,Subject,Status,SentAt", lines[0])
	require.Contains(t, lines[1], `"bulk, with comma"`, "commas stay quoted")
	require.Contains(t, lines[1], "2026-03-14T09:30:00Z")
	require.Contains(t, lines[2], StatusFailed)
}

func TestWriteCSVEmptyHistory(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteCSV(&buf, nil))
	require.Equal(t, "ID,To,Subject,Status,SentAt\n", buf.String())
}
