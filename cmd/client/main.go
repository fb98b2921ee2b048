package main

import "hotelsync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
