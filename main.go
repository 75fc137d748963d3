package main

import "specdrift/cmd"

func main() {
	cmd.Execute()
}
