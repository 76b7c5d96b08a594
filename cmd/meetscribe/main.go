package main

import (
	"meetscribe/internal/cli"
	"os"
)

func main() {
	os.Exit(cli.Execute())
}
