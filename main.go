package main

import "github.com/scanin/scanin/cmd"

func main() {
	cmd.Execute()
}
