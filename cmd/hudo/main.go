package main

import "hudo/internal/cli"

func main() {
	cli.Execute()
}
