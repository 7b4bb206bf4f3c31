package main

import "github.com/chrisuehlinger/vibebridge/cmd"

func main() {
	cmd.Execute()
}
