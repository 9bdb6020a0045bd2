// Command fpi is the operator CLI.
package main

import (
	"os"

	"github.com/turtacn/FakeProfile-Intelligence/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
