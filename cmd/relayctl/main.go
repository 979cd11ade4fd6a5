package main

import "github.com/mcoot/echorelay/internal/cli"

func main() {
	cli.Execute()
}
