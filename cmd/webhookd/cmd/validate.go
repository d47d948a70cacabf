package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vitaliisemenov/webhookd/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Load and validate webhook_server.yml without starting the server",
	RunE:  runValidate,
}

// parsedWebhook is the YAML-pretty-printed form of a catalogue entry,
// echoing back Mode and ParallelProcesses the way they were actually
// resolved (not how the operator wrote them).
type parsedWebhook struct {
	Name              string `yaml:"name"`
	Command           string `yaml:"command"`
	Cwd               string `yaml:"cwd,omitempty"`
	Mode              string `yaml:"mode"`
	ParallelProcesses int    `yaml:"parallel_processes,omitempty"`
}

func runValidate(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}

	fmt.Printf("config OK: %s:%d, %d workers, %d webhooks\n\n", cfg.Domain, cfg.Port, cfg.Workers, len(cfg.Webhooks))

	parsed := make([]parsedWebhook, len(cfg.Webhooks))
	for i, wh := range cfg.Webhooks {
		parsed[i] = parsedWebhook{
			Name:              wh.Name,
			Command:           wh.Command,
			Cwd:               wh.Cwd,
			Mode:              wh.Mode.String(),
			ParallelProcesses: wh.ParallelProcesses,
		}
	}

	out, err := yaml.Marshal(map[string][]parsedWebhook{"webhooks": parsed})
	if err != nil {
		return fmt.Errorf("rendering parsed catalogue: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
