package main

import "bmadflow/internal/cli"

func main() {
	cli.Execute()
}
