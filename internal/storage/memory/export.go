// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/riftduel/duelsync/internal/model"
	"github.com/riftduel/duelsync/pkg/core"
)

// SessionExport is the root JSON structure
type SessionExport struct {
	SessionID    string              `json:"sessionId"`
	Name         string              `json:"name"`
	StartedAt    time.Time           `json:"startedAt"`
	EndedAt      time.Time           `json:"endedAt"`
	Participants []ParticipantExport `json:"participants"`
	Events       []EventExport       `json:"events"`
}

// ParticipantExport holds one participant's state samples
type ParticipantExport struct {
	ID      uint8          `json:"id"`
	Samples []SampleExport `json:"samples"`
}

// SampleExport is one recorded state
type SampleExport struct {
	Time  time.Time       `json:"time"`
	State model.StateJSON `json:"state"`
}

// EventExport is one recorded trigger
type EventExport struct {
	Time        time.Time       `json:"time"`
	Participant uint8           `json:"participant"`
	Event       string          `json:"event"`
	State       model.StateJSON `json:"state"`
}

// fileName builds "<name>_<start>.json[.gz]"
func fileName(s *core.Session, compress bool) string {
	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(s.Name)
	if name == "" {
		name = "session"
	}
	timestamp := s.StartedAt.Format("20060102_150405")
	if compress {
		return fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	}
	return fmt.Sprintf("%s_%s.json", name, timestamp)
}

// exportJSON writes the session data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()
	outputPath := filepath.Join(b.cfg.OutputDir, fileName(b.session, b.cfg.CompressOutput))

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		SessionID:    b.session.ID.String(),
		Name:         b.session.Name,
		StartedAt:    b.session.StartedAt,
		EndedAt:      b.session.EndedAt,
		Participants: make([]ParticipantExport, 0, len(core.Participants)),
		Events:       make([]EventExport, 0, len(b.events)),
	}

	for _, id := range core.Participants {
		states := b.states[id]
		p := ParticipantExport{
			ID:      uint8(id),
			Samples: make([]SampleExport, 0, len(states)),
		}
		for _, r := range states {
			p.Samples = append(p.Samples, SampleExport{Time: r.Time, State: model.NewStateJSON(r.State)})
		}
		export.Participants = append(export.Participants, p)
	}

	for _, r := range b.events {
		export.Events = append(export.Events, EventExport{
			Time:        r.Time,
			Participant: uint8(r.Participant),
			Event:       string(r.Event),
			State:       model.NewStateJSON(r.State),
		})
	}

	return export
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
