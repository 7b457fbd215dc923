package models

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Chronicle is the record of a finished run. It is written once and never
// read back into a live session.
type Chronicle struct {
	RunID         string       `yaml:"run_id"`
	Outcome       Phase        `yaml:"outcome"`
	FinishedAt    time.Time    `yaml:"finished_at"`
	Days          int          `yaml:"days"`
	Distance      int          `yaml:"distance"`
	DistanceTotal int          `yaml:"distance_total"`
	Food          float64      `yaml:"food"`
	Mood          int          `yaml:"mood"`
	Survivors     int          `yaml:"survivors"`
	Crew          []CrewMember `yaml:"crew"`
	Logs          []string     `yaml:"logs"`
}

// NewChronicle summarizes a session that reached a terminal phase.
func NewChronicle(s Session, finishedAt time.Time) Chronicle {
	s = s.Clone()
	return Chronicle{
		RunID:         s.RunID,
		Outcome:       s.Phase,
		FinishedAt:    finishedAt.UTC(),
		Days:          s.Day,
		Distance:      s.DistanceTraveled,
		DistanceTotal: s.DistanceTotal,
		Food:          s.Food,
		Mood:          s.Mood,
		Survivors:     s.AliveCount(),
		Crew:          s.Crew,
		Logs:          s.Logs,
	}
}

// ChronicleStore keeps one YAML file per finished run in Dir.
type ChronicleStore struct {
	Dir string
	now func() time.Time
}

func NewChronicleStore(dir string) *ChronicleStore {
	return &ChronicleStore{Dir: dir, now: time.Now}
}

// Record writes the chronicle of a terminal session.
func (c *ChronicleStore) Record(s Session) error {
	if !s.Phase.IsTerminal() {
		return fmt.Errorf("session %s is still %s", s.RunID, s.Phase)
	}
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(NewChronicle(s, c.now()))
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.Dir, s.RunID+".yaml"), data, 0644)
}

func (c *ChronicleStore) Load(runID string) (*Chronicle, error) {
	data, err := os.ReadFile(filepath.Join(c.Dir, runID+".yaml"))
	if err != nil {
		return nil, err
	}
	var ch Chronicle
	if err := yaml.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("failed to parse chronicle %s: %w", runID, err)
	}
	return &ch, nil
}

// List returns the run ids of all recorded chronicles, oldest first.
func (c *ChronicleStore) List() ([]string, error) {
	if _, err := os.Stat(c.Dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, err
	}

	type item struct {
		id  string
		mod time.Time
	}
	var items []item
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		items = append(items, item{id: strings.TrimSuffix(entry.Name(), ".yaml"), mod: info.ModTime()})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].mod.Before(items[j].mod) })

	runs := make([]string, 0, len(items))
	for _, it := range items {
		runs = append(runs, it.id)
	}
	return runs, nil
}

// Latest loads the most recently written chronicle, or nil if there is none.
func (c *ChronicleStore) Latest() (*Chronicle, error) {
	runs, err := c.List()
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return c.Load(runs[len(runs)-1])
}
