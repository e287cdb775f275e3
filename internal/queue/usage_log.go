package queue

import (
	"fmt"
	"os"
	"path/filepath"
)

// UsageLogName is the file usage exports are appended to.
const UsageLogName = "usage.log"

// AppendUsageLog writes one line per seat of ev to dir/usage.log, creating
// the directory when needed.
func AppendUsageLog(dir string, ev UsageExportedEvent) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, UsageLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open usage log: %w", err)
	}
	defer f.Close()

	if len(ev.Seats) == 0 {
		_, err = fmt.Fprintf(f, "[%s] %s usage export | export_id=%s | period=%s | seats=0\n",
			ev.ExportedAt, ev.Kind, ev.ExportID, ev.Period)
		return err
	}
	for _, s := range ev.Seats {
		if _, err := fmt.Fprintf(f, "[%s] %s usage export | export_id=%s | period=%s | floor=%s | seat=%s | empty_seconds=%d | changes=%d\n",
			ev.ExportedAt, ev.Kind, ev.ExportID, ev.Period, s.FloorID, s.SeatID, s.EmptySeconds, s.ChangeCount); err != nil {
			return fmt.Errorf("write usage log: %w", err)
		}
	}
	return nil
}
