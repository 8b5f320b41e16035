package main

import "ximoveis/cmd/ximoveisctl/commands"

func main() {
	commands.Execute()
}
