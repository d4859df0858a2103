package trend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"signalbot/internal/logger"
	"signalbot/internal/signal"
)

// FileJournal appends "key value unixmillis" lines to a text file.
type FileJournal struct {
	path string

	mu sync.Mutex
	f  *os.File
}

func OpenFileJournal(path string) (*FileJournal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileJournal{path: path, f: f}, nil
}

func (j *FileJournal) Append(_ context.Context, rec Record) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	line := fmt.Sprintf("%s %s %d\n", rec.Key, strconv.FormatFloat(rec.Value, 'f', -1, 64), at.UnixMilli())
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return fmt.Errorf("journal %s is closed", j.path)
	}
	_, err := j.f.WriteString(line)
	return err
}

func (j *FileJournal) Replay(ctx context.Context, fn func(Record)) error {
	f, err := os.Open(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	skipped := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, ok := parseJournalLine(sc.Text())
		if !ok {
			if strings.TrimSpace(sc.Text()) != "" {
				skipped++
			}
			continue
		}
		fn(rec)
	}
	if skipped > 0 {
		logger.Warnf("trend journal %s: skipped %d malformed lines", j.path, skipped)
	}
	return sc.Err()
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}

// parseJournalLine accepts "key value [unixmillis]" and the older alert-log
// shape "info: key = value. <date>".
func parseJournalLine(line string) (Record, bool) {
	line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "info:"))
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Record{}, false
	}
	key, err := signal.ParseTrendKey(fields[0])
	if err != nil {
		return Record{}, false
	}
	rawValue := fields[1]
	legacy := false
	if rawValue == "=" {
		if len(fields) < 3 {
			return Record{}, false
		}
		rawValue = strings.TrimSuffix(fields[2], ".")
		legacy = true
	}
	val, err := strconv.ParseFloat(rawValue, 64)
	if err != nil {
		return Record{}, false
	}
	rec := Record{Key: key, Value: val}
	if !legacy && len(fields) >= 3 {
		if ms, err := strconv.ParseInt(fields[2], 10, 64); err == nil {
			rec.At = time.UnixMilli(ms)
		}
	}
	return rec, true
}
