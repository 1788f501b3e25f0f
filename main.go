package main

import "github.com/kbedkowski/tbviewer/cmd"

func main() {
	cmd.Execute()
}
