// Command generator publishes synthetic application events for local
// development and demos.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/notifyhub/internal/bus"
	"github.com/gyaneshwarpardhi/notifyhub/internal/hierarchy"
)

// profile describes what the generator publishes.
type profile struct {
	NATSURL    string   `yaml:"nats_url"`
	Paths      []string `yaml:"paths"`
	EventTypes []string `yaml:"event_types"`
	Users      []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"users"`
	// Interval between events after the initial burst.
	Interval time.Duration `yaml:"interval"`
	// InitialEvents are published immediately at startup.
	InitialEvents int `yaml:"initial_events"`
}

var comments = []string{
	"This looks great!",
	"I have some concerns about this approach.",
	"Can we discuss this in the next meeting?",
	"I've made some changes, please review.",
	"Let's get this finished by Friday.",
}

var statuses = []string{"in_progress", "on_hold", "completed", "blocked", "in_review"}

func loadProfile(path string) (*profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	var p profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if len(p.Paths) == 0 || len(p.EventTypes) == 0 || len(p.Users) == 0 {
		return nil, fmt.Errorf("profile %s needs paths, event_types, and users", path)
	}
	if p.NATSURL == "" {
		p.NATSURL = "nats://127.0.0.1:4222"
	}
	if p.Interval == 0 {
		p.Interval = 5 * time.Second
	}
	if p.InitialEvents == 0 {
		p.InitialEvents = 10
	}
	return &p, nil
}

// publishRandom builds one random event and publishes it on its subject.
func publishRandom(b *bus.Bus, p *profile) error {
	objectPath := hierarchy.Normalize(p.Paths[rand.Intn(len(p.Paths))])
	eventType := p.EventTypes[rand.Intn(len(p.EventTypes))]
	user := p.Users[rand.Intn(len(p.Users))]
	now := time.Now().UTC()

	data := map[string]any{
		"user_id":   user.ID,
		"user_name": user.Name,
		"timestamp": now.Format(time.RFC3339Nano),
	}
	switch eventType {
	case "commented":
		data["comment"] = comments[rand.Intn(len(comments))]
	case "status_changed":
		old := statuses[rand.Intn(len(statuses))]
		next := old
		for next == old {
			next = statuses[rand.Intn(len(statuses))]
		}
		data["old_status"] = old
		data["new_status"] = next
	case "assigned":
		assignee := user
		for len(p.Users) > 1 && assignee.ID == user.ID {
			assignee = p.Users[rand.Intn(len(p.Users))]
		}
		data["assignee_id"] = assignee.ID
		data["assignee_name"] = assignee.Name
	}

	payload, err := json.Marshal(map[string]any{
		"id":          uuid.New().String(),
		"object_path": objectPath,
		"event_type":  eventType,
		"timestamp":   now.Format(time.RFC3339Nano),
		"data":        data,
	})
	if err != nil {
		return err
	}

	// Subject mirrors the path: /projects/x + created -> app.events.projects.x.created
	components := strings.Split(strings.Trim(objectPath, "/"), "/")
	subject := "app.events." + strings.Join(components, ".") + "." + eventType
	if err := b.PublishEvent(subject, payload); err != nil {
		return err
	}
	slog.Info("published event", "subject", subject, "type", eventType, "user", user.ID)
	return nil
}

func main() {
	profilePath := flag.String("profile", "configs/generator.yaml", "Path to generator profile YAML")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	p, err := loadProfile(*profilePath)
	if err != nil {
		slog.Error("failed to load profile", "err", err)
		os.Exit(1)
	}

	b, err := bus.Connect(p.NATSURL)
	if err != nil {
		slog.Error("failed to connect to nats", "url", p.NATSURL, "err", err)
		os.Exit(1)
	}
	defer b.Close()

	slog.Info("generating initial events", "count", p.InitialEvents)
	for i := 0; i < p.InitialEvents; i++ {
		if err := publishRandom(b, p); err != nil {
			slog.Error("publish failed", "err", err)
		}
	}
	_ = b.Flush()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	slog.Info("generator running", "interval", p.Interval)
	for {
		select {
		case <-ticker.C:
			if err := publishRandom(b, p); err != nil {
				slog.Error("publish failed", "err", err)
			}
		case <-quit:
			slog.Info("generator stopping")
			return
		}
	}
}
