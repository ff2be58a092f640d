// The main package for the veritium executable.
package main

import (
	"github.com/veritium/crawler/cmd"
)

func main() {
	cmd.Execute()
}
