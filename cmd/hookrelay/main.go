package main

import "github.com/platinummonkey/hookrelay/cmd/hookrelay/cmd"

func main() {
	cmd.Execute()
}
