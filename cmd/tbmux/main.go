package main

import "github.com/joeydtaylor/tbmux/cmd/tbmux/cmd"

func main() {
	cmd.Execute()
}
