// Command webhookd runs the webhook dispatcher: it listens for inbound
// HTTP requests, matches them against a configured catalogue of webhooks,
// renders each one's command template, and hands it to the scheduler for
// admission and eventual execution.
package main

import (
	"fmt"
	"os"

	"github.com/vitaliisemenov/webhookd/cmd/webhookd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
