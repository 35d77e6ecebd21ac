package main

import "github.com/Tiliavir/git-timesheets/cmd"

func main() {
	cmd.Execute()
}
