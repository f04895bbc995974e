package game

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
	"github.com/gi-tcg/gitcg-server-go/internal/game/view"
)

// ExportLine is one exposed mutation of an export stream.
type ExportLine struct {
	Pause     int               `json:"pause"`
	CanResume bool              `json:"canResume"`
	Mutation  mutation.Envelope `json:"mutation"`
}

// Exporter writes the mutations one viewer is allowed to see as
// zstd-compressed JSON lines. Its OnPause method is a PauseFunc.
type Exporter struct {
	viewer state.Who

	mu    sync.Mutex
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
	pause int
}

// NewExporter creates path and exports for viewer. NoOne exports the
// spectator view.
func NewExporter(path string, viewer state.Who) (*Exporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Exporter{
		viewer: viewer,
		f:      f,
		enc:    enc,
		w:      bufio.NewWriterSize(enc, 64*1024),
	}, nil
}

// OnPause appends the exposed batch of one pause point.
func (e *Exporter) OnPause(_ *state.GameState, batch []mutation.Mutation, canResume bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.w == nil {
		return fmt.Errorf("exporter closed")
	}
	e.pause++
	for _, m := range view.ExposeBatch(e.viewer, batch) {
		env, err := mutation.Encode(m)
		if err != nil {
			return err
		}
		b, err := json.Marshal(ExportLine{Pause: e.pause, CanResume: canResume, Mutation: env})
		if err != nil {
			return err
		}
		if _, err := e.w.Write(b); err != nil {
			return err
		}
		if err := e.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return e.w.Flush()
}

// Close flushes and closes the file.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err1 error
	if e.w != nil {
		_ = e.w.Flush()
		e.w = nil
	}
	if e.enc != nil {
		err1 = e.enc.Close()
		e.enc = nil
	}
	if e.f != nil {
		if err := e.f.Close(); err1 == nil {
			err1 = err
		}
		e.f = nil
	}
	return err1
}

// ReadExport decodes an export stream.
func ReadExport(r io.Reader) ([]ExportLine, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	var out []ExportLine
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var line ExportLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("export line %d: %w", len(out)+1, err)
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}
