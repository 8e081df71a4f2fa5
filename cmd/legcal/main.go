package main

import (
	"os"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
