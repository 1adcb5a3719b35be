package main

import "github.com/qobs-build/abs/cmd"

func main() {
	cmd.Execute()
}
