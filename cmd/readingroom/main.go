package main

import (
	"github.com/quietfloor/readingroom/internal/cli"
)

func main() {
	cli.Execute()
}
