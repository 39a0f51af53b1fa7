package turnlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOpenNamesFileFromSessionStart(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	l, err := Open(dir, start)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer l.Close()

	if _, err := os.Stat(filepath.Join(dir, "session_20260314_092653.jsonl")); err != nil {
		t.Fatalf("expected session file: %v", err)
	}
}

func TestAppendWritesOneLinePerTurn(t *testing.T) {
	dir := t.TempDir()
	start := time.Now()

	l, err := Open(dir, start)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer l.Close()

	records := []Record{
		{TS: start.Add(time.Second), TurnID: 1, UserText: "merhaba", AssistantText: "size nasil yardimci olabilirim", Status: "completed"},
		{TS: start.Add(2 * time.Second), TurnID: 2, UserText: "tesekkurler", AssistantText: "rica ederim", Status: "interrupted"},
	}
	for _, record := range records {
		if err := l.Append(record); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one log file, got %d (err %v)", len(entries), err)
	}

	file, err := os.Open(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("log lines = %d, want 2", len(lines))
	}

	for i, line := range lines {
		var parsed struct {
			TS            string `json:"ts"`
			TurnID        int    `json:"turn_id"`
			UserText      string `json:"user_text"`
			AssistantText string `json:"assistant_text"`
			Status        string `json:"status"`
		}
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", i, err)
		}
		if parsed.TurnID != records[i].TurnID {
			t.Fatalf("line %d turn_id = %d, want %d", i, parsed.TurnID, records[i].TurnID)
		}
		if parsed.UserText != records[i].UserText || parsed.AssistantText != records[i].AssistantText {
			t.Fatalf("line %d text round-trip mismatch", i)
		}
		if parsed.Status != records[i].Status {
			t.Fatalf("line %d status = %q, want %q", i, parsed.Status, records[i].Status)
		}
		if _, err := time.Parse("2006-01-02T15:04:05.000Z07:00", parsed.TS); err != nil {
			t.Fatalf("line %d ts %q not RFC3339 with milliseconds: %v", i, parsed.TS, err)
		}
	}
}

func TestAppendPreservesUnicodeText(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, time.Now())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer l.Close()

	text := "günaydın, siparişim nerede? \"acil\"\nlütfen"
	if err := l.Append(Record{TS: time.Now(), TurnID: 1, UserText: text, Status: "completed"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}

	line := strings.TrimSuffix(string(data), "\n")
	if strings.Contains(line, "\n") {
		t.Fatal("record spilled across multiple lines")
	}

	var parsed struct {
		UserText string `json:"user_text"`
	}
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.UserText != text {
		t.Fatalf("user_text round-trip = %q, want %q", parsed.UserText, text)
	}
}

func TestAppendAfterCloseReturnsStorageError(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, time.Now())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	err = l.Append(Record{TS: time.Now(), TurnID: 1, Status: "completed"})
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("append after close = %v, want StorageError", err)
	}
}
