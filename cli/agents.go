// Agent listing for CLI commands.

package cli

import (
	"fmt"
	"strings"

	"github.com/marendel/skein/agent"
)

// ListAgents prints the routable agent set.
func ListAgents() error {
	registry, err := agent.WithDefaults()
	if err != nil {
		return err
	}

	for _, cfg := range registry.List() {
		fmt.Printf("%s - %s\n", cfg.ID, cfg.Name)
		fmt.Printf("  %s\n", cfg.Description)
		if cfg.HasTools() {
			fmt.Printf("  tools: %s\n", strings.Join(cfg.Tools, ", "))
		}
	}
	return nil
}
