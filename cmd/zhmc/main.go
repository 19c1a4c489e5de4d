package main

import (
	"os"

	"github.com/Jeomhps/hmc-go/internal/commands"
)

func main() {
	os.Exit(commands.Run(os.Args, os.Stdout, os.Stderr))
}
