package main

import (
	"github.com/robotalks/bang.go/pkg/cli/sh"
)

func init() {
	sh.SetupFlags()
}

func main() {
	sh.Main()
}
