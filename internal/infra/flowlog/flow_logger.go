// Package flowlog guarda una traza legible de cada mensaje producido o consumido.
// No lo consulta ninguna lógica de negocio.
package flowlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Kind string

const (
	Produced Kind = "PRODUCED"
	Consumed Kind = "CONSUMED"
)

const (
	Header    = "=== KAFKA MESSAGE FLOW LOG ==="
	separator = "================================================================================"
	// isoLayout imita el ISO8601 con milisegundos y sufijo Z.
	isoLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Entry es un registro de la traza.
type Entry struct {
	At      time.Time
	Kind    Kind
	Topic   string
	Payload []byte
}

// Sink recibe una copia de cada entrada (p.ej. un almacén analítico).
// No debe bloquear.
type Sink interface {
	Add(e Entry)
}

// FlowLogger escribe en un fichero que se trunca al arrancar y replica una línea
// por consola. Un *FlowLogger nil es válido y no hace nada.
type FlowLogger struct {
	mu   sync.Mutex
	file *os.File
	log  *zap.Logger
	sink Sink
}

// New crea (o trunca) el fichero y escribe la cabecera.
func New(path string, log *zap.Logger) (*FlowLogger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("flow log dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("flow log file: %w", err)
	}
	header := fmt.Sprintf("%s\nStarted at: %s\n\n", Header, time.Now().UTC().Format(isoLayout))
	if _, err := f.WriteString(header); err != nil {
		f.Close()
		return nil, err
	}
	return &FlowLogger{file: f, log: log}, nil
}

// WithSink añade un destino secundario.
func (l *FlowLogger) WithSink(s Sink) *FlowLogger {
	if l != nil {
		l.sink = s
	}
	return l
}

// Record añade una entrada. Los fallos de escritura solo se registran.
func (l *FlowLogger) Record(kind Kind, topic string, payload []byte) {
	if l == nil {
		return
	}
	now := time.Now().UTC()
	entry := FormatEntry(now, kind, topic, payload)

	l.mu.Lock()
	_, err := l.file.WriteString(entry)
	l.mu.Unlock()
	if err != nil {
		l.log.Warn("⚠️ Flow log write failed", zap.Error(err))
	}

	l.log.Info(fmt.Sprintf("KAFKA %s: %s", kind, topic), zap.ByteString("message", payload))

	if l.sink != nil {
		l.sink.Add(Entry{At: now, Kind: kind, Topic: topic, Payload: append([]byte(nil), payload...)})
	}
}

func (l *FlowLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// FormatEntry devuelve el bloque tal y como queda en el fichero.
func FormatEntry(at time.Time, kind Kind, topic string, payload []byte) string {
	var pretty bytes.Buffer
	body := string(payload)
	if err := json.Indent(&pretty, payload, "", "  "); err == nil {
		body = pretty.String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | Topic: %s | %s\n%s\n", at.UTC().Format(isoLayout), kind, topic, body, separator)
	return b.String()
}

// Follow escribe en w el contenido actual de path y después lo que se vaya añadiendo,
// comprobando cada interval, hasta que ctx se cancele.
func Follow(ctx context.Context, path string, interval time.Duration, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for {
			n, err := f.Read(buf)
			if n > 0 {
				if _, werr := w.Write(buf[:n]); werr != nil {
					return werr
				}
			}
			if err != nil {
				break
			}
		}

		// Si el servicio se reinicia el fichero se trunca: volvemos al principio.
		if st, err := f.Stat(); err == nil {
			if pos, _ := f.Seek(0, io.SeekCurrent); st.Size() < pos {
				if _, err := f.Seek(0, io.SeekStart); err != nil {
					return err
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
