package main

import (
	"os"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
