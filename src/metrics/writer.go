package metrics

import (
	"encoding/json"
	"os"
	"sync"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
)

// Writer receives one portfolio snapshot per housekeeping tick.
type Writer interface {
	Write(snapshot datamodels.PortfolioSnapshot) error
}

// Broadcaster pushes a labeled payload to connected clients. The
// websocket host implements it.
type Broadcaster interface {
	Broadcast(messageType string, payload any)
}

// FileWriter appends snapshots as JSON lines, one object per line, so a
// session's value curve can be replayed or charted offline.
type FileWriter struct {
	mu   sync.Mutex
	file *os.File
}

func NewFileWriter(path string) (*FileWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open metrics file %s", path)
	}
	return &FileWriter{file: file}, nil
}

func (w *FileWriter) Write(snapshot datamodels.PortfolioSnapshot) error {
	// Histories are already capped upstream; drop them here to keep the
	// metrics file one compact line per tick.
	snapshot.Transactions = nil
	snapshot.ValueHistory = nil

	line, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "encode metrics snapshot")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "append metrics snapshot")
	}
	return nil
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// WsWriter fans snapshots out to websocket clients.
type WsWriter struct {
	broadcaster Broadcaster
}

func NewWsWriter(broadcaster Broadcaster) *WsWriter {
	return &WsWriter{broadcaster: broadcaster}
}

func (w *WsWriter) Write(snapshot datamodels.PortfolioSnapshot) error {
	w.broadcaster.Broadcast("portfolio", snapshot)
	return nil
}

// MultiWriter writes to every wrapped writer and returns the first error
// after all of them ran.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (w *MultiWriter) Write(snapshot datamodels.PortfolioSnapshot) error {
	var firstErr error
	for _, writer := range w.writers {
		if err := writer.Write(snapshot); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FromConfig assembles the configured writer stack; nil config or no
// enabled writers yields (nil, nil) and the caller skips metrics.
func FromConfig(cfg *datamodels.MetricsWriterConfig, broadcaster Broadcaster) (Writer, error) {
	if cfg == nil {
		return nil, nil
	}
	var writers []Writer
	if cfg.FileWriter {
		path := cfg.FilePath
		if path == "" {
			path = "papertrader-metrics.jsonl"
		}
		fileWriter, err := NewFileWriter(path)
		if err != nil {
			return nil, err
		}
		writers = append(writers, fileWriter)
	}
	if cfg.WsWriter && broadcaster != nil {
		writers = append(writers, NewWsWriter(broadcaster))
	}
	switch len(writers) {
	case 0:
		return nil, nil
	case 1:
		return writers[0], nil
	default:
		return NewMultiWriter(writers...), nil
	}
}
