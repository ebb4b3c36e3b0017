// The main package for the jobcrawler executable.
package main

import (
	"github.com/JakeFAU/jobboard-crawler/cmd"
)

func main() {
	cmd.Execute()
}
