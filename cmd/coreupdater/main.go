package main

import "coreupdater/internal/cli"

func main() {
	cli.Execute()
}
