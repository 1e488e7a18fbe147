// The main package for the fipe-scraper executable.
package main

import (
	"github.com/openfipe/fipe-scraper/cmd"
)

func main() {
	cmd.Execute()
}
