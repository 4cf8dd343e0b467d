package main

import "github.com/leonardcser/page-cache/internal/cli"

func main() {
	cli.Execute()
}
