package main

import "github.com/LuisEduardoPedra/gstrecon/internal/cli"

func main() {
	cli.Execute()
}
