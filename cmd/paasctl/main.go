package main

import "github.com/lyzr/launchpad/cmd/paasctl/cli"

func main() {
	cli.Execute()
}
