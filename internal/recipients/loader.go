package recipients

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/storage"
)

// maxUnixSeconds is the largest unsubscribe timestamp accepted as epoch
// seconds. Values outside [0, maxUnixSeconds] fall back to the current time.
const maxUnixSeconds = 9999999999

// CustomListKey builds the object key for an uploaded custom list.
func CustomListKey(prefix, listID string) string {
	return fmt.Sprintf("%s%s.csv", prefix, listID)
}

// LoadEmailList streams the CSV object at key and returns its addresses
// lowercased, trimmed and deduplicated, preserving first-seen order. The
// email column is matched case-insensitively. A missing object is
// reported as domain.ErrEmailListNotFound.
func LoadEmailList(ctx context.Context, store storage.ObjectStore, key string) ([]string, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrEmailListNotFound, key)
		}
		return nil, err
	}
	defer rc.Close()

	reader := csv.NewReader(stripBOM(rc))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	emailCol := -1
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "email") {
			emailCol = i
			break
		}
	}
	if emailCol < 0 {
		return nil, fmt.Errorf("no email column detected in header: %v", header)
	}

	seen := make(map[string]bool)
	var emails []string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if emailCol >= len(row) {
			continue
		}
		addr := strings.ToLower(strings.TrimSpace(row[emailCol]))
		if addr == "" || !strings.Contains(addr, "@") {
			continue
		}
		if seen[addr] {
			continue
		}
		seen[addr] = true
		emails = append(emails, addr)
	}

	return emails, nil
}

// LoadUnsubscribed returns the unsubscribe set as address -> unsubscribed-at.
// Each line is `email,timestamp` with the timestamp in epoch seconds. A
// missing object means nobody unsubscribed yet and yields an empty set.
func LoadUnsubscribed(ctx context.Context, store storage.ObjectStore, key string) (map[string]time.Time, error) {
	unsubscribed := make(map[string]time.Time)

	rc, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return unsubscribed, nil
		}
		return nil, err
	}
	defer rc.Close()

	reader := csv.NewReader(stripBOM(rc))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if len(row) == 0 {
			continue
		}
		addr := strings.ToLower(strings.TrimSpace(row[0]))
		if addr == "" || !strings.Contains(addr, "@") {
			continue
		}
		unsubscribed[addr] = parseUnsubTime(row)
	}

	return unsubscribed, nil
}

func parseUnsubTime(row []string) time.Time {
	if len(row) < 2 {
		return time.Now().UTC()
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(row[1]), 10, 64)
	if err != nil || ts < 0 || ts > maxUnixSeconds {
		return time.Now().UTC()
	}
	return time.Unix(ts, 0).UTC()
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := r.Read(buf)
	if err != nil || n < 3 {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
